// Package evaluator uploads a presentation to the review backend and hands
// back the streamed NDJSON evaluation body.
package evaluator

import (
	"errors"
	"fmt"
	"io"
)

// Form fields and endpoint of the backend's evaluation route.
const (
	FieldSlide  = "slide"
	FieldAudio  = "audio"
	FieldUserID = "user_id"

	EvaluatePath = "/evaluate/"

	RequestIDHeader = "X-Request-ID"
)

// maxErrorBody caps how much of a failed response body is kept.
const maxErrorBody = 4 << 10

// ErrMissingFile is returned when a submission names a file that cannot be
// read. No request is sent in that case.
var ErrMissingFile = errors.New("evaluator: missing file")

// Submission is one presentation to evaluate.
type Submission struct {
	SlidePath string
	AudioPath string
	UserID    string
}

// Response is an accepted evaluation. The caller owns Body and must close it.
type Response struct {
	Body      io.ReadCloser
	RequestID string
}

// StatusError reports a non-2xx reply from the backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("evaluator: status %d", e.StatusCode)
	}
	return fmt.Sprintf("evaluator: status %d: %s", e.StatusCode, e.Body)
}
