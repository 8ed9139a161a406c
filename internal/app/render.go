package app

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"
	"github.com/reviewmeeting/review/internal/stream"
	"github.com/reviewmeeting/review/internal/ui"
)

// ScoreLabels name the summary scores in the score panel.
var ScoreLabels = [...]string{
	stream.ScoreStructure:  "構成",
	stream.ScoreSpeech:     "話速",
	stream.ScoreKnowledge:  "知識レベル",
	stream.ScorePersonas:   "ペルソナ",
	stream.ScoreComparison: "比較",
}

const maxScore = 5

// cardFrame is the horizontal space taken by the card border and padding.
const cardFrame = 4

// renderCard renders one result card inside a border. Text results wrap as
// paragraphs, structured results list their members, and the knowledge card
// gets a prerequisites table.
func renderCard(card stream.Card, width int) string {
	return ui.CardBorderStyle.Render(cardContent(card, max(10, width-cardFrame)))
}

func cardContent(card stream.Card, width int) string {
	lines := []string{ui.CardTitleStyle.Render("■ " + card.Label)}

	if text, ok := card.Text(); ok {
		if stream.IsKnowledgeLabel(card.Label) {
			if k, ok := stream.ParseKnowledge(text); ok {
				return strings.Join(append(lines, renderKnowledge(k, width)), "\n")
			}
		}
		lines = append(lines, wrapText(text, width)...)
		return strings.Join(lines, "\n")
	}

	if members := stream.Members(card.Result); members != nil {
		for _, mem := range members {
			key := mem.Key + ": "
			value := memberText(mem.Value)
			wrapped := wrapText(value, max(10, width-runewidth.StringWidth(key)))
			lines = append(lines, ui.CardKeyStyle.Render(key)+wrapped[0])
			indent := strings.Repeat(" ", runewidth.StringWidth(key))
			for _, wl := range wrapped[1:] {
				lines = append(lines, indent+wl)
			}
		}
		return strings.Join(lines, "\n")
	}

	lines = append(lines, wrapText(stream.Serialize(card.Result), width)...)
	return strings.Join(lines, "\n")
}

func memberText(v []byte) string {
	c := stream.Card{Result: v}
	if s, ok := c.Text(); ok {
		return s
	}
	return stream.Serialize(v)
}

func renderKnowledge(k stream.Knowledge, width int) string {
	var parts []string
	if k.Summary != "" {
		parts = append(parts, strings.Join(wrapText(k.Summary, width), "\n"))
	}
	if len(k.Prerequisites) > 0 {
		parts = append(parts, renderPrerequisites(k.Prerequisites, width))
	}
	if len(parts) == 0 {
		return ui.DimStyle.Render("(no prerequisites)")
	}
	return strings.Join(parts, "\n")
}

func renderPrerequisites(rows []stream.PrerequisiteRow, width int) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(ui.TableBorderStyle).
		Headers("term", "description", "level", "explained_level").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return ui.TableHeaderStyle
			}
			return ui.TableCellStyle
		})
	for _, r := range rows {
		t.Row(r.Term, r.Description, r.Level, r.ExplainedLevel)
	}
	if width > 0 {
		t.Width(width)
	}
	return t.Render()
}

// renderSummary draws the five score bars and the summary text.
func renderSummary(s stream.Summary, width int) string {
	lines := []string{ui.PanelTitleStyle.Render("総評")}

	labelWidth := 0
	for _, l := range ScoreLabels {
		labelWidth = max(labelWidth, runewidth.StringWidth(l))
	}
	for i, score := range s.Scores {
		lines = append(lines, renderScoreBar(ScoreLabels[i], labelWidth, score))
	}
	if s.Summary != "" {
		lines = append(lines, "")
		lines = append(lines, wrapText(s.Summary, width)...)
	}
	return strings.Join(lines, "\n")
}

func renderScoreBar(label string, labelWidth int, score float64) string {
	filled := int(math.Round(score))
	filled = max(0, min(filled, maxScore))

	var bar strings.Builder
	for i := 0; i < maxScore; i++ {
		switch {
		case i >= filled:
			bar.WriteString(ui.LevelGrayStyle.Render("░░"))
		case filled <= 2:
			bar.WriteString(ui.LevelYellowStyle.Render("██"))
		default:
			bar.WriteString(ui.LevelGreenStyle.Render("██"))
		}
	}
	return padRight(ui.ScoreLabelStyle.Render(label), labelWidth) + " " + bar.String() +
		ui.DimStyle.Render(fmt.Sprintf(" %g/%d", score, maxScore))
}

// wrapText breaks text into lines of at most width display cells. Words are
// kept whole when they fit; runs without spaces, such as Japanese sentences,
// break at any rune.
func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var cur strings.Builder
		curW := 0
		flush := func() {
			lines = append(lines, cur.String())
			cur.Reset()
			curW = 0
		}

		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		for _, word := range words {
			w := runewidth.StringWidth(word)
			if curW > 0 && curW+1+w <= width {
				cur.WriteByte(' ')
				cur.WriteString(word)
				curW += 1 + w
				continue
			}
			if curW > 0 {
				flush()
			}
			for _, r := range word {
				rw := runewidth.RuneWidth(r)
				if curW > 0 && curW+rw > width {
					flush()
				}
				cur.WriteRune(r)
				curW += rw
			}
		}
		if curW > 0 {
			flush()
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
