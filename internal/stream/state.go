package stream

import (
	"encoding/json"

	"github.com/buger/jsonparser"
)

// Card is a display-ready result. Result holds either a JSON string (text
// cards) or a structured JSON value.
type Card struct {
	Label  string          `json:"label"`
	Result json.RawMessage `json:"result"`
}

// Text returns the card text when the result is a string.
func (c Card) Text() (string, bool) {
	if Kind(c.Result) != jsonparser.String {
		return "", false
	}
	var s string
	if err := json.Unmarshal(c.Result, &s); err != nil {
		return "", false
	}
	return s, true
}

// Score indexes into Scores.
type Score int

const (
	ScoreStructure Score = iota
	ScoreSpeech
	ScoreKnowledge
	ScorePersonas
	ScoreComparison
)

// ScoreKeys are the summary-agent member names, in Scores order.
var ScoreKeys = [...]string{
	ScoreStructure:  "structure_score",
	ScoreSpeech:     "speech_score",
	ScoreKnowledge:  "knowledge_score",
	ScorePersonas:   "personas_score",
	ScoreComparison: "comparison_score",
}

// Scores holds the five summary scores.
type Scores [len(ScoreKeys)]float64

// Summary is the summary agent's verdict.
type Summary struct {
	Scores  Scores `json:"scores"`
	Summary string `json:"summary"`
}

// ParseSummary extracts a Summary from a resolved summary-agent result.
// Missing or non-numeric scores become 0 and a missing summary becomes "".
func ParseSummary(v json.RawMessage) Summary {
	var s Summary
	for i, key := range ScoreKeys {
		s.Scores[i] = lookupNumber(v, key)
	}
	s.Summary, _ = lookupString(v, "summary")
	return s
}

// Audio is the reference audio sample for speech-rate practice.
type Audio struct {
	Base64 string `json:"base64"`
}

// SlideModification is the suggested slide rework.
type SlideModification struct {
	ImageBase64 *string `json:"image_base64,omitempty"`
	Text        *string `json:"text,omitempty"`
}

// State is everything the stream has produced so far.
//
// A State value is never mutated after it is returned: Reduce copies the
// card slice on append and replaces singleton slots with fresh pointers, so
// a renderer may keep any snapshot while the stream continues.
type State struct {
	Cards             []Card             `json:"cards"`
	Summary           *Summary           `json:"summary,omitempty"`
	Audio             *Audio             `json:"audio,omitempty"`
	SlideModification *SlideModification `json:"slide_modification,omitempty"`
}

// Reduce returns the state after applying u.
func Reduce(s State, u Update) State {
	switch u := u.(type) {
	case CardAppend:
		s.Cards = append(s.Cards[:len(s.Cards):len(s.Cards)], u.Card)
	case SummaryUpdate:
		summary := u.Summary
		s.Summary = &summary
	case AudioUpdate:
		audio := u.Audio
		s.Audio = &audio
	case SlideModUpdate:
		slide := u.Slide
		s.SlideModification = &slide
	}
	return s
}

// Accumulator owns the state of one stream.
type Accumulator struct {
	state State
}

// Apply folds one update into the state.
func (a *Accumulator) Apply(u Update) {
	a.state = Reduce(a.state, u)
}

// Snapshot returns the current state. It stays valid after later Apply calls.
func (a *Accumulator) Snapshot() State {
	return a.state
}
