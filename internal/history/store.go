package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/reviewmeeting/review/internal/stream"

	_ "modernc.org/sqlite"
)

// Store provides read-only access to the backend database.
type Store struct {
	db *sql.DB
}

// Open opens the database in read-only mode.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("open database: no path configured")
	}
	dsn := fmt.Sprintf("file:%s?mode=ro", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ResultsForUser returns every evaluation of a user, oldest first.
func (s *Store) ResultsForUser(userID string) ([]Evaluation, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, date, ai_evaluation_result
		FROM analysis_results
		WHERE user_id = ?
		ORDER BY date ASC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	var out []Evaluation
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// LatestForUser returns the most recent evaluation of a user, or nil when
// there is none.
func (s *Store) LatestForUser(userID string) (*Evaluation, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, date, ai_evaluation_result
		FROM analysis_results
		WHERE user_id = ?
		ORDER BY date DESC, id DESC
		LIMIT 1
	`, userID)

	ev, err := scanEvaluation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ev, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(sc scanner) (Evaluation, error) {
	var ev Evaluation
	var date any
	if err := sc.Scan(&ev.ID, &ev.UserID, &date, &ev.Raw); err != nil {
		return Evaluation{}, fmt.Errorf("scan evaluation: %w", err)
	}
	t, err := parseDate(date)
	if err != nil {
		return Evaluation{}, fmt.Errorf("evaluation %d: %w", ev.ID, err)
	}
	ev.Date = t
	ev.Summary = parseResult(ev.Raw)
	return ev, nil
}

// parseResult reads the five scores and summary out of a stored result. Text
// that is not a JSON object is kept as the summary.
func parseResult(raw string) stream.Summary {
	v := stream.Resolve(json.RawMessage(raw))
	if stream.Kind(v) != jsonparser.Object {
		return stream.Summary{Summary: raw}
	}
	return stream.ParseSummary(v)
}

var dateLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02",
}

// parseDate accepts the driver's time values, SQLAlchemy text dates, RFC 3339
// and unix seconds.
func parseDate(v any) (time.Time, error) {
	switch v := v.(type) {
	case time.Time:
		return v, nil
	case int64:
		return time.Unix(v, 0), nil
	case float64:
		return timeFromUnix(v), nil
	case []byte:
		return parseDateText(string(v))
	case string:
		return parseDateText(v)
	case nil:
		return time.Time{}, errors.New("date is null")
	}
	return time.Time{}, fmt.Errorf("unsupported date type %T", v)
}

func parseDateText(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return timeFromUnix(f), nil
	}
	return time.Time{}, fmt.Errorf("parse date %q", s)
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
