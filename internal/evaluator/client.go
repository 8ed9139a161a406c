package evaluator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Client posts submissions to the review backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client. Its timeout bounds the
// whole streamed response, so leave it zero for long evaluations and use the
// context instead.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "evaluator")
	return c
}

// Submit uploads the slide and audio files and returns the open response
// stream. The body is not read; pass it to stream.Consume or stream.Stream.
func (c *Client) Submit(ctx context.Context, sub Submission) (*Response, error) {
	for _, p := range []string{sub.SlidePath, sub.AudioPath} {
		if err := checkFile(p); err != nil {
			return nil, err
		}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, sub))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+EvaluatePath, pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("create request: %w", err)
	}
	id := uuid.NewString()
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/x-ndjson")
	req.Header.Set(RequestIDHeader, id)

	c.logger.Info("submit", "request_id", id, "user_id", sub.UserID,
		"slide", filepath.Base(sub.SlidePath), "audio", filepath.Base(sub.AudioPath))

	resp, err := c.http.Do(req)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("evaluation rejected", "request_id", id, "status", resp.StatusCode)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return &Response{Body: resp.Body, RequestID: id}, nil
}

func checkFile(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrMissingFile)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMissingFile, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrMissingFile, path)
	}
	return nil
}

// writeForm streams both files and the user id into mw.
func writeForm(mw *multipart.Writer, sub Submission) error {
	if err := copyFile(mw, FieldSlide, sub.SlidePath); err != nil {
		return err
	}
	if err := copyFile(mw, FieldAudio, sub.AudioPath); err != nil {
		return err
	}
	if err := mw.WriteField(FieldUserID, sub.UserID); err != nil {
		return fmt.Errorf("write field %s: %w", FieldUserID, err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close form: %w", err)
	}
	return nil
}

func copyFile(mw *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", field, err)
	}
	defer f.Close()

	part, err := mw.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create form file %s: %w", field, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copy %s: %w", field, err)
	}
	return nil
}
