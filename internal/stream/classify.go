package stream

import (
	"encoding/json"
	"strings"

	"github.com/buger/jsonparser"
)

// Labels and types emitted by the evaluation agents.
const (
	LabelAudioSample       = "お手本音声サンプル（話速改善用）"
	LabelSlideModification = "スライド修正案（構成改善用）"
	LabelStructure         = "構成エージェントの意見"
	LabelSpeechRate        = "話速エージェントの意見"
	LabelComparison        = "比較AIの意見"

	// Matched as substrings.
	LabelKnowledge = "知識レベルエージェント"
	LabelSummary   = "総評エージェントの意見"
	LabelAgent     = "エージェントの意見"

	TypeAudioWAV          = "audio/wav-base64"
	TypeSlideModification = "slide_modification"
)

// Update is the outcome of classifying one record.
type Update interface {
	update()
}

// AudioUpdate replaces the audio slot.
type AudioUpdate struct {
	Audio Audio
}

// SlideModUpdate replaces the slide modification slot.
type SlideModUpdate struct {
	Slide SlideModification
}

// CardAppend appends a card.
type CardAppend struct {
	Card Card
}

// SummaryUpdate replaces the summary slot.
type SummaryUpdate struct {
	Summary Summary
}

func (AudioUpdate) update()    {}
func (SlideModUpdate) update() {}
func (CardAppend) update()     {}
func (SummaryUpdate) update()  {}

type rule struct {
	name   string
	match  func(Record) bool
	handle func(Record) Update
}

// rules are evaluated top to bottom and the first match wins. Later
// predicates overlap earlier ones (every agent label contains LabelAgent), so
// the order is part of the behavior.
var rules = []rule{
	{
		name: "audio",
		match: func(r Record) bool {
			return r.Label == LabelAudioSample && r.Type == TypeAudioWAV
		},
		handle: audioSample,
	},
	{
		name: "slide_modification",
		match: func(r Record) bool {
			return r.Label == LabelSlideModification && r.Type == TypeSlideModification
		},
		handle: slideModification,
	},
	{name: "structure", match: labelIs(LabelStructure), handle: structureReview},
	{name: "speech_rate", match: labelIs(LabelSpeechRate), handle: speechRateReview},
	{name: "knowledge", match: labelHas(LabelKnowledge), handle: knowledgeReview},
	{name: "comparison", match: labelIs(LabelComparison), handle: comparisonReview},
	{name: "summary", match: labelHas(LabelSummary), handle: summaryVerdict},
	{name: "persona", match: labelHas(LabelAgent), handle: personaReview},
	{name: "default", match: func(Record) bool { return true }, handle: flattenDefault},
}

// Classify maps a record to the update it produces. It is a pure function of
// the record.
func Classify(rec Record) Update {
	_, u := classify(rec)
	return u
}

func classify(rec Record) (string, Update) {
	for _, r := range rules {
		if r.match(rec) {
			return r.name, r.handle(rec)
		}
	}
	// Unreachable: the default rule always matches.
	return "", flattenDefault(rec)
}

func labelIs(label string) func(Record) bool {
	return func(r Record) bool { return r.Label == label }
}

func labelHas(substr string) func(Record) bool {
	return func(r Record) bool { return strings.Contains(r.Label, substr) }
}

// audioSample takes the result verbatim. It is not resolved: a base64
// payload can itself be valid JSON text (all digits, for instance).
func audioSample(r Record) Update {
	var payload string
	switch {
	case isString(r.Result):
		_ = json.Unmarshal(r.Result, &payload)
	case len(r.Result) > 0:
		payload = Serialize(canonical(r.Result))
	}
	return AudioUpdate{Audio: Audio{Base64: payload}}
}

func slideModification(r Record) Update {
	v := Resolve(r.Result)
	var slide SlideModification
	if s, ok := lookupString(v, "image_base64"); ok {
		slide.ImageBase64 = &s
	}
	if s, ok := lookupString(v, "text"); ok {
		slide.Text = &s
	}
	return SlideModUpdate{Slide: slide}
}

func structureReview(r Record) Update {
	return fieldOrSerialized(r, "review")
}

func comparisonReview(r Record) Update {
	return fieldOrSerialized(r, "comparison_evaluation")
}

func speechRateReview(r Record) Update {
	v := Resolve(r.Result)
	var parts []string
	for _, key := range []string{"speech_rate_review", "speaking_style_review"} {
		if s, ok := lookupString(v, key); ok && s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return textCard(r.Label, Serialize(v))
	}
	return textCard(r.Label, strings.Join(parts, "\n"))
}

// knowledgeReview keeps the whole object, including the optional summary and
// prerequisites table, as serialized text.
func knowledgeReview(r Record) Update {
	return textCard(r.Label, Serialize(Resolve(r.Result)))
}

func summaryVerdict(r Record) Update {
	return SummaryUpdate{Summary: ParseSummary(Resolve(r.Result))}
}

// personaReview keeps the resolved value itself; the renderer handles
// structured persona feedback.
func personaReview(r Record) Update {
	return CardAppend{Card: Card{Label: r.Label, Result: Resolve(r.Result)}}
}

// flattenDefault joins the string members of an object result. Members that
// are not strings are dropped. Non-object results are kept as they are.
func flattenDefault(r Record) Update {
	v := Resolve(r.Result)
	if values, ok := objectStrings(v); ok {
		return textCard(r.Label, strings.Join(values, "\n"))
	}
	return CardAppend{Card: Card{Label: r.Label, Result: v}}
}

func fieldOrSerialized(r Record, key string) Update {
	v := Resolve(r.Result)
	if s, ok := lookupString(v, key); ok {
		return textCard(r.Label, s)
	}
	return textCard(r.Label, Serialize(v))
}

func textCard(label, text string) Update {
	return CardAppend{Card: Card{Label: label, Result: quote(text)}}
}

// PrerequisiteRow is one entry of the knowledge agent's prerequisites table.
type PrerequisiteRow struct {
	Term           string `json:"term"`
	Description    string `json:"description"`
	Level          string `json:"level"`
	ExplainedLevel string `json:"explained_level"`
}

// Knowledge is the structure carried by a knowledge-level card.
type Knowledge struct {
	Summary       string            `json:"summary,omitempty"`
	Prerequisites []PrerequisiteRow `json:"prerequisites,omitempty"`
}

// ParseKnowledge reads the knowledge structure back out of a knowledge card's
// text. ok is false when the text is not a JSON object.
func ParseKnowledge(text string) (k Knowledge, ok bool) {
	data := []byte(text)
	if Kind(data) != jsonparser.Object {
		return Knowledge{}, false
	}
	k.Summary, _ = lookupString(data, "summary")
	_, _ = jsonparser.ArrayEach(data, func(v []byte, t jsonparser.ValueType, _ int, _ error) {
		if t != jsonparser.Object {
			return
		}
		var row PrerequisiteRow
		row.Term, _ = lookupString(v, "term")
		row.Description, _ = lookupString(v, "description")
		row.Level, _ = lookupString(v, "level")
		row.ExplainedLevel, _ = lookupString(v, "explained_level")
		k.Prerequisites = append(k.Prerequisites, row)
	}, "prerequisites")
	return k, true
}

// IsKnowledgeLabel reports whether label belongs to the knowledge agent.
func IsKnowledgeLabel(label string) bool {
	return strings.Contains(label, LabelKnowledge)
}
