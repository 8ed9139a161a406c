package app

import (
	"io"

	"github.com/reviewmeeting/review/internal/artifact"
	"github.com/reviewmeeting/review/internal/stream"
)

// StreamOpenedMsg is sent when the evaluation stream is open.
type StreamOpenedMsg struct {
	Body      io.ReadCloser
	RequestID string
}

// UpdateMsg carries one classified record from the stream.
type UpdateMsg struct {
	Update stream.Update
}

// DoneMsg is sent when the stream ended cleanly.
type DoneMsg struct {
	State stream.State
}

// FailedMsg is sent when the upload or the stream failed. Cards received
// before the failure stay on screen.
type FailedMsg struct {
	Err error
}

// SavedMsg reports exported artifacts.
type SavedMsg struct {
	Saved artifact.Saved
}

// SaveErrorMsg reports a failed export.
type SaveErrorMsg struct {
	Err error
}

// ClearNoticeMsg clears a transient notice after a timeout.
type ClearNoticeMsg struct{}
