// Package history provides read-only SQLite access to past evaluations
// stored by the review backend.
package history

import (
	"time"

	"github.com/reviewmeeting/review/internal/stream"
)

// Evaluation is one row of the analysis_results table.
type Evaluation struct {
	ID      int64          `json:"id" yaml:"id"`
	UserID  string         `json:"user_id" yaml:"user_id"`
	Date    time.Time      `json:"date" yaml:"date"`
	Summary stream.Summary `json:"summary" yaml:"summary"`

	// Raw is the stored ai_evaluation_result text.
	Raw string `json:"-" yaml:"-"`
}
