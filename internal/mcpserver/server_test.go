package mcpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/reviewmeeting/review/internal/history"

	_ "modernc.org/sqlite"
)

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestNormalizeStream(t *testing.T) {
	s := New("test", Options{})
	ndjson := "{\"label\":\"比較AIの意見\",\"result\":\"{\\\"comparison_evaluation\\\":\\\"improved\\\"}\"}\nnot json\n{\"label\":\"x\",\"result\":\"tail\"}"

	res, err := s.handleNormalize(context.Background(), callRequest("normalize_stream", map[string]any{"ndjson": ndjson}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}

	var got normalized
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.State.Cards) != 1 {
		t.Fatalf("cards = %d, want 1", len(got.State.Cards))
	}
	if text, _ := got.State.Cards[0].Text(); text != "improved" {
		t.Errorf("card text = %q, want %q", text, "improved")
	}
	if got.Stats.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", got.Stats.Skipped)
	}
}

func TestNormalizeStreamFlushTrailing(t *testing.T) {
	s := New("test", Options{})
	args := map[string]any{
		"ndjson":         "{\"label\":\"x\",\"result\":\"tail\"}",
		"flush_trailing": true,
	}

	res, err := s.handleNormalize(context.Background(), callRequest("normalize_stream", args))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	var got normalized
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.State.Cards) != 1 {
		t.Errorf("cards = %d, want the flushed trailing record", len(got.State.Cards))
	}
}

func TestNormalizeStreamMissingArgument(t *testing.T) {
	s := New("test", Options{})
	res, err := s.handleNormalize(context.Background(), callRequest("normalize_stream", map[string]any{}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !res.IsError {
		t.Error("missing ndjson should be a tool error")
	}
}

func TestListEvaluationsWithoutDB(t *testing.T) {
	s := New("test", Options{})
	res, err := s.handleListEvaluations(context.Background(), callRequest("list_evaluations", map[string]any{"user_id": "u-1"}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !res.IsError {
		t.Error("list without a database should be a tool error")
	}
}

func TestListEvaluations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test_db.sqlite3")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE analysis_results (
			id INTEGER PRIMARY KEY,
			user_id VARCHAR NOT NULL,
			date DATETIME NOT NULL,
			ai_evaluation_result VARCHAR NOT NULL
		);
		INSERT INTO analysis_results (user_id, date, ai_evaluation_result)
		VALUES ('u-1', '2025-01-01 00:00:00', '{"structure_score":3,"summary":"ok"}');
	`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	db.Close()

	s := New("test", Options{DBPath: path})
	res, err := s.handleListEvaluations(context.Background(), callRequest("list_evaluations", map[string]any{"user_id": "u-1"}))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}

	var evals []history.Evaluation
	if err := json.Unmarshal([]byte(resultText(t, res)), &evals); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(evals) != 1 || evals[0].Summary.Summary != "ok" || evals[0].Summary.Scores[0] != 3 {
		t.Errorf("evals = %+v", evals)
	}
}
