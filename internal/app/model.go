package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/reviewmeeting/review/internal/artifact"
	"github.com/reviewmeeting/review/internal/stream"
	"github.com/reviewmeeting/review/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

// Step is the stage of an evaluation.
type Step int

const (
	StepUploading Step = iota
	StepEvaluating
	StepDone
	StepFailed
)

func (s Step) String() string {
	switch s {
	case StepUploading:
		return "Upload"
	case StepEvaluating:
		return "Evaluating"
	case StepDone:
		return "Done"
	case StepFailed:
		return "Failed"
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// Source opens the evaluation stream. It is called once from Init.
type Source func(ctx context.Context) (body io.ReadCloser, requestID string, err error)

// Options configures a Model.
type Options struct {
	// Context bounds the upload and the stream. Cancelling it stops both.
	// Defaults to context.Background.
	Context context.Context

	// Title is shown in the header, usually the slide file name.
	Title string

	Source Source
	Stream stream.Options

	// OutputDir is where the save key writes artifacts.
	OutputDir string

	Logger *slog.Logger
}

// Model is the root bubbletea model for the review TUI.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	// Stream
	source     Source
	streamOpts stream.Options
	body       io.Closer
	events     <-chan stream.Event
	requestID  string

	// Evaluation state
	step    Step
	state   stream.State
	records int
	err     error

	// UI state
	title  string
	width  int
	height int
	scroll int
	follow bool

	// Notices
	errorMessage string
	notice       string

	outputDir string
	logger    *slog.Logger
}

// New creates a Model in the upload step.
func New(opts Options) Model {
	parent := opts.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Stream.Logger == nil {
		opts.Stream.Logger = logger
	}
	return Model{
		ctx:        ctx,
		cancel:     cancel,
		source:     opts.Source,
		streamOpts: opts.Stream,
		title:      opts.Title,
		outputDir:  opts.OutputDir,
		follow:     true,
		logger:     logger.With("component", "app"),
	}
}

// State returns the accumulated evaluation state.
func (m Model) State() stream.State { return m.state }

// Step returns the current step.
func (m Model) Step() Step { return m.step }

// Err returns the failure that ended the evaluation, if any.
func (m Model) Err() error { return m.err }

// Close cancels the stream context and closes the response body. It is
// safe to call on a model the runtime has already stopped.
func (m Model) Close() {
	m.cancel()
	m.closeBody()
}

// Init returns the initial command: open the stream.
func (m Model) Init() tea.Cmd {
	if m.source == nil {
		return nil
	}
	return openCmd(m.ctx, m.source)
}

// openCmd runs the source and reports the open body.
func openCmd(ctx context.Context, source Source) tea.Cmd {
	return func() tea.Msg {
		body, id, err := source(ctx)
		if err != nil {
			return FailedMsg{Err: err}
		}
		return StreamOpenedMsg{Body: body, RequestID: id}
	}
}

// waitForEventCmd takes the next event from the stream.
func waitForEventCmd(events <-chan stream.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return FailedMsg{Err: context.Canceled}
		}
		if ev.Done {
			if ev.Err != nil {
				return FailedMsg{Err: ev.Err}
			}
			return DoneMsg{State: ev.State}
		}
		return UpdateMsg{Update: ev.Update}
	}
}

// saveCmd exports the audio and slide artifacts.
func saveCmd(dir string, st stream.State) tea.Cmd {
	return func() tea.Msg {
		saved, err := artifact.Save(dir, st)
		if err != nil {
			return SaveErrorMsg{Err: err}
		}
		return SavedMsg{Saved: saved}
	}
}

// clearNoticeCmd fires after a delay to clear transient notices.
func clearNoticeCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearNoticeMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.follow {
			m.scrollToBottom()
		}
		return m, nil

	case StreamOpenedMsg:
		m.body = msg.Body
		m.requestID = msg.RequestID
		m.step = StepEvaluating
		m.events = stream.Stream(m.ctx, msg.Body, m.streamOpts)
		return m, waitForEventCmd(m.events)

	case UpdateMsg:
		m.state = stream.Reduce(m.state, msg.Update)
		m.records++
		if m.follow {
			m.scrollToBottom()
		}
		return m, waitForEventCmd(m.events)

	case DoneMsg:
		m.state = msg.State
		m.step = StepDone
		m.closeBody()
		if m.follow {
			m.scrollToBottom()
		}
		return m, nil

	case FailedMsg:
		m.step = StepFailed
		m.err = msg.Err
		m.errorMessage = msg.Err.Error()
		m.closeBody()
		m.logger.Warn("evaluation failed", "error", msg.Err, "records", m.records)
		return m, nil

	case SavedMsg:
		paths := msg.Saved.Paths()
		m.notice = fmt.Sprintf("Saved %d file(s) to %s", len(paths), m.outputDir)
		m.logger.Info("artifacts saved", "paths", paths)
		return m, clearNoticeCmd()

	case SaveErrorMsg:
		m.notice = "Save failed: " + msg.Err.Error()
		return m, clearNoticeCmd()

	case ClearNoticeMsg:
		m.notice = ""
		return m, nil
	}

	return m, nil
}

func (m *Model) closeBody() {
	if m.body != nil {
		m.body.Close()
		m.body = nil
	}
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		m.cancel()
		m.closeBody()
		return m, tea.Quit

	case KeyUp, KeyK:
		m.follow = false
		if m.scroll > 0 {
			m.scroll--
		}
		return m, nil

	case KeyDown, KeyJ:
		maxScroll := m.maxScroll()
		m.scroll++
		if m.scroll >= maxScroll {
			m.scroll = maxScroll
			m.follow = true
		}
		return m, nil

	case KeyHome:
		m.follow = false
		m.scroll = 0
		return m, nil

	case KeyEnd:
		m.follow = true
		m.scrollToBottom()
		return m, nil

	case KeySave:
		if m.state.Audio == nil && m.state.SlideModification == nil {
			m.notice = "Nothing to save yet"
			return m, clearNoticeCmd()
		}
		if m.outputDir == "" {
			m.notice = "No output directory configured"
			return m, clearNoticeCmd()
		}
		return m, saveCmd(m.outputDir, m.state)
	}

	return m, nil
}

func (m *Model) scrollToBottom() {
	m.scroll = m.maxScroll()
}

func (m Model) maxScroll() int {
	total := len(m.bodyLines())
	visible := m.bodyVisibleLines()
	if total <= visible {
		return 0
	}
	return total - visible
}

func (m Model) bodyVisibleLines() int {
	if m.height == 0 {
		return 20
	}
	// Reserve: header(1) + steps(1) + divider(2) + badges(1) + notice(1) + footer(1)
	reserved := 7
	return max(5, m.height-reserved)
}

func (m Model) contentWidth() int {
	if m.width == 0 {
		return 76
	}
	return max(20, m.width-4)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderSteps())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderBody())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderBadges())
	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	} else if m.notice != "" {
		sections = append(sections, ui.StatusStyle.Render(m.notice))
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("REVIEW")
	if m.title != "" {
		title += ui.DimStyle.Render(" · " + m.title)
	}
	if m.requestID != "" {
		title += ui.DimStyle.Render("  [" + m.requestID[:min(8, len(m.requestID))] + "]")
	}
	return title
}

func (m Model) renderSteps() string {
	steps := []Step{StepUploading, StepEvaluating, StepDone}
	var parts []string
	for i, s := range steps {
		label := fmt.Sprintf("%d %s", i+1, s)
		switch {
		case m.step == StepFailed && s == StepDone:
			parts = append(parts, ui.ErrorStyle.Render(fmt.Sprintf("%d %s", i+1, StepFailed)))
		case s < m.step || m.step == StepDone:
			parts = append(parts, ui.StepDoneStyle.Render("✓ "+label))
		case s == m.step:
			parts = append(parts, ui.StepActiveStyle.Render("● "+label))
		default:
			parts = append(parts, ui.StepPendingStyle.Render("○ "+label))
		}
	}
	status := ui.StatusStyle.Render(fmt.Sprintf("  %d records", m.records))
	return strings.Join(parts, ui.DimStyle.Render(" → ")) + status
}

func (m Model) renderBody() string {
	lines := m.bodyLines()
	visible := m.bodyVisibleLines()

	start := m.scroll
	if m.follow && len(lines) > visible {
		start = len(lines) - visible
	}
	start = max(0, min(start, max(0, len(lines)-visible)))
	end := min(len(lines), start+visible)

	out := make([]string, 0, visible)
	for i := start; i < end; i++ {
		out = append(out, "  "+lines[i])
	}
	for len(out) < visible {
		out = append(out, "")
	}
	return strings.Join(out, "\n")
}

// bodyLines renders every card and the summary panel as display lines.
func (m Model) bodyLines() []string {
	width := m.contentWidth()
	var lines []string

	if len(m.state.Cards) == 0 && m.state.Summary == nil {
		switch m.step {
		case StepUploading:
			lines = append(lines, ui.DimStyle.Render("Uploading slide and audio..."))
		case StepEvaluating:
			lines = append(lines, ui.DimStyle.Render("Waiting for the first agent..."))
		default:
			lines = append(lines, ui.DimStyle.Render("No results."))
		}
		return lines
	}

	for i, card := range m.state.Cards {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, strings.Split(renderCard(card, width), "\n")...)
	}

	if m.state.Summary != nil {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, strings.Split(renderSummary(*m.state.Summary, width), "\n")...)
	}
	return lines
}

func (m Model) renderBadges() string {
	badge := func(name string, on bool) string {
		if on {
			return ui.BadgeOnStyle.Render("● " + name)
		}
		return ui.BadgeOffStyle.Render("○ " + name)
	}
	parts := []string{
		badge("audio sample", m.state.Audio != nil),
		badge("slide modification", m.state.SlideModification != nil),
	}
	if !m.follow {
		parts = append(parts, ui.ScrollBadgeStyle.Render("SCROLL"))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	var parts []string
	parts = append(parts, ui.FooterKeyStyle.Render("j/k")+ui.FooterDescStyle.Render(" Scroll"))
	parts = append(parts, ui.FooterKeyStyle.Render("g/G")+ui.FooterDescStyle.Render(" Top/Live"))
	if m.state.Audio != nil || m.state.SlideModification != nil {
		parts = append(parts, ui.FooterKeyStyle.Render("s")+ui.FooterDescStyle.Render(" Save"))
	}
	parts = append(parts, ui.FooterKeyStyle.Render("q")+ui.FooterDescStyle.Render(" Quit"))
	return strings.Join(parts, "  ")
}

// IsFinished reports whether the stream has ended.
func (m Model) IsFinished() bool {
	return m.step == StepDone || m.step == StepFailed
}

// Helpers

func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}
