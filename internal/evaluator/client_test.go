package evaluator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/reviewmeeting/review/internal/stream"
)

func writeFiles(t *testing.T) Submission {
	t.Helper()
	dir := t.TempDir()
	slide := filepath.Join(dir, "deck.pdf")
	audio := filepath.Join(dir, "talk.wav")
	if err := os.WriteFile(slide, []byte("%PDF-slide"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(audio, []byte("RIFF-audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return Submission{SlidePath: slide, AudioPath: audio, UserID: "u-42"}
}

func TestSubmitSendsMultipartForm(t *testing.T) {
	type seen struct {
		path, slide, audio, slideName, user, requestID string
	}
	got := make(chan seen, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var s seen
		s.path = r.URL.Path
		s.requestID = r.Header.Get(RequestIDHeader)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.user = r.FormValue(FieldUserID)
		for _, field := range []string{FieldSlide, FieldAudio} {
			f, hdr, err := r.FormFile(field)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			data, _ := io.ReadAll(f)
			f.Close()
			if field == FieldSlide {
				s.slide, s.slideName = string(data), hdr.Filename
			} else {
				s.audio = string(data)
			}
		}
		got <- s
		w.Header().Set("Content-Type", "application/x-ndjson")
		io.WriteString(w, "{\"label\":\"比較AIの意見\",\"result\":\"ok\"}\n")
	}))
	defer srv.Close()

	resp, err := New(srv.URL+"/").Submit(context.Background(), writeFiles(t))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	defer resp.Body.Close()

	s := <-got
	if s.path != EvaluatePath {
		t.Errorf("path = %q, want %q", s.path, EvaluatePath)
	}
	if s.slide != "%PDF-slide" || s.audio != "RIFF-audio" {
		t.Errorf("files = %q, %q", s.slide, s.audio)
	}
	if s.slideName != "deck.pdf" {
		t.Errorf("slide filename = %q", s.slideName)
	}
	if s.user != "u-42" {
		t.Errorf("user_id = %q, want %q", s.user, "u-42")
	}
	if s.requestID != resp.RequestID {
		t.Errorf("request id header = %q, response id = %q", s.requestID, resp.RequestID)
	}
	if _, err := uuid.Parse(resp.RequestID); err != nil {
		t.Errorf("request id %q is not a uuid: %v", resp.RequestID, err)
	}

	st, err := stream.Consume(context.Background(), resp.Body, stream.Options{})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if len(st.Cards) != 1 || st.Cards[0].Label != "比較AIの意見" {
		t.Errorf("cards = %+v", st.Cards)
	}
}

func TestSubmitMissingFile(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	sub := writeFiles(t)
	sub.AudioPath = filepath.Join(t.TempDir(), "nope.wav")

	_, err := New(srv.URL).Submit(context.Background(), sub)
	if !errors.Is(err, ErrMissingFile) {
		t.Fatalf("err = %v, want ErrMissingFile", err)
	}
	if calls.Load() != 0 {
		t.Errorf("server saw %d requests, want 0", calls.Load())
	}

	sub = writeFiles(t)
	sub.SlidePath = ""
	if _, err := New(srv.URL).Submit(context.Background(), sub); !errors.Is(err, ErrMissingFile) {
		t.Errorf("empty path err = %v, want ErrMissingFile", err)
	}
}

func TestSubmitStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		http.Error(w, "slide too large", http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Submit(context.Background(), writeFiles(t))
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d", se.StatusCode)
	}
	if se.Body != "slide too large" {
		t.Errorf("body = %q", se.Body)
	}
	if !strings.Contains(se.Error(), "413") {
		t.Errorf("error text = %q", se.Error())
	}
}

func TestSubmitStatusErrorBodyCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, strings.Repeat("x", 3*maxErrorBody))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Submit(context.Background(), writeFiles(t))
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if len(se.Body) != maxErrorBody {
		t.Errorf("body length = %d, want %d", len(se.Body), maxErrorBody)
	}
}

func TestSubmitContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(srv.URL).Submit(ctx, writeFiles(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestStatusErrorWithoutBody(t *testing.T) {
	err := &StatusError{StatusCode: 502}
	if err.Error() != "evaluator: status 502" {
		t.Errorf("error = %q", err.Error())
	}
}
