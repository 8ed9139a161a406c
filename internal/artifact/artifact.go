// Package artifact writes the binary results of an evaluation to disk.
package artifact

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/reviewmeeting/review/internal/stream"
)

// File names written by Save.
const (
	AudioFile     = "sample.wav"
	SlideImage    = "slide.png"
	SlideTextFile = "slide.txt"
)

// ErrNothingToSave is returned when the state has neither an audio sample
// nor a slide modification.
var ErrNothingToSave = errors.New("no artifacts in evaluation")

// Saved lists the files written by Save. Empty fields were skipped.
type Saved struct {
	Audio      string `json:"audio,omitempty" yaml:"audio,omitempty"`
	SlideImage string `json:"slide_image,omitempty" yaml:"slide_image,omitempty"`
	SlideText  string `json:"slide_text,omitempty" yaml:"slide_text,omitempty"`
}

// Paths returns the written paths in write order.
func (s Saved) Paths() []string {
	var out []string
	for _, p := range []string{s.Audio, s.SlideImage, s.SlideText} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Save writes the audio slot and the slide modification slot of st into dir,
// creating it if needed. Absent slots are skipped.
func Save(dir string, st stream.State) (Saved, error) {
	var saved Saved
	if st.Audio == nil && st.SlideModification == nil {
		return saved, ErrNothingToSave
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return saved, fmt.Errorf("create output dir: %w", err)
	}

	if st.Audio != nil {
		path := filepath.Join(dir, AudioFile)
		if err := writeBase64(path, st.Audio.Base64); err != nil {
			return saved, fmt.Errorf("write audio: %w", err)
		}
		saved.Audio = path
	}

	if slide := st.SlideModification; slide != nil {
		if slide.ImageBase64 != nil {
			path := filepath.Join(dir, SlideImage)
			if err := writeBase64(path, *slide.ImageBase64); err != nil {
				return saved, fmt.Errorf("write slide image: %w", err)
			}
			saved.SlideImage = path
		}
		if slide.Text != nil {
			path := filepath.Join(dir, SlideTextFile)
			if err := os.WriteFile(path, []byte(*slide.Text), 0o644); err != nil {
				return saved, fmt.Errorf("write slide text: %w", err)
			}
			saved.SlideText = path
		}
	}

	return saved, nil
}

func writeBase64(path, payload string) error {
	data, err := decodeBase64(payload)
	if err != nil {
		return fmt.Errorf("decode base64: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// decodeBase64 accepts standard or URL encoding, padded or not, and an
// optional data URL prefix.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' {
			return -1
		}
		return r
	}, s)

	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	} {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	_, err := base64.StdEncoding.DecodeString(s)
	return nil, err
}
