package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/reviewmeeting/review/internal/app"
	"github.com/reviewmeeting/review/internal/artifact"
	"github.com/reviewmeeting/review/internal/evaluator"
	"github.com/reviewmeeting/review/internal/stream"
)

func newSubmitCmd(g *globals) *cobra.Command {
	var (
		sub    evaluator.Submission
		noTUI  bool
		format string
		save   bool
	)

	cmd := &cobra.Command{
		Use:   "submit --slide FILE --audio FILE",
		Short: "Upload a presentation and follow its evaluation",
		Long: `Upload a slide and a recording to the evaluation backend and render each
agent's result as it streams in.

With --no-tui, cards are printed to stderr as they arrive and the final state
is written to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sub.UserID == "" {
				sub.UserID = g.cfg.UserID
			}
			if err := g.setupLogging(!noTUI, cmd.ErrOrStderr()); err != nil {
				return err
			}

			ctx, cancel := g.withTimeout(cmd.Context())
			defer cancel()

			client := evaluator.New(g.cfg.Endpoint)
			opts := g.streamOptions()

			var st stream.State
			var err error
			if noTUI {
				st, err = submitPlain(ctx, client, sub, opts, cmd.ErrOrStderr())
			} else {
				st, err = submitTUI(ctx, client, sub, opts, g.cfg.OutputDir)
			}

			if save && (st.Audio != nil || st.SlideModification != nil) {
				saved, serr := artifact.Save(g.cfg.OutputDir, st)
				if serr != nil {
					return errors.Join(err, serr)
				}
				for _, p := range saved.Paths() {
					fmt.Fprintf(cmd.ErrOrStderr(), "✓ wrote %s\n", p)
				}
			}
			if err != nil {
				return err
			}
			if noTUI {
				return writeResult(cmd.OutOrStdout(), st, format, "")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sub.SlidePath, "slide", "", "slide file (PDF or image)")
	cmd.Flags().StringVar(&sub.AudioPath, "audio", "", "presentation recording")
	cmd.Flags().StringVar(&sub.UserID, "user", "", "user id (default from config)")
	cmd.Flags().BoolVar(&noTUI, "no-tui", false, "print results instead of starting the terminal UI")
	cmd.Flags().StringVarP(&format, "output", "o", FormatJSON, "final state format with --no-tui: json or yaml")
	cmd.Flags().BoolVar(&save, "save", false, "write the audio sample and slide suggestion to the output dir")
	_ = cmd.MarkFlagRequired("slide")
	_ = cmd.MarkFlagRequired("audio")
	return cmd
}

// submitPlain consumes the evaluation without a TUI, printing each card.
func submitPlain(ctx context.Context, client *evaluator.Client, sub evaluator.Submission, opts stream.Options, progress io.Writer) (stream.State, error) {
	resp, err := client.Submit(ctx, sub)
	if err != nil {
		return stream.State{}, err
	}
	defer resp.Body.Close()

	opts.OnUpdate = func(u stream.Update, _ stream.State) {
		printUpdate(progress, u)
	}
	opts.Logger = opts.Logger.With("request_id", resp.RequestID)
	return stream.Consume(ctx, resp.Body, opts)
}

// submitTUI runs the bubbletea renderer over the evaluation.
func submitTUI(ctx context.Context, client *evaluator.Client, sub evaluator.Submission, opts stream.Options, outputDir string) (stream.State, error) {
	m := app.New(app.Options{
		Context: ctx,
		Title:   filepath.Base(sub.SlidePath),
		Source: func(ctx context.Context) (io.ReadCloser, string, error) {
			resp, err := client.Submit(ctx, sub)
			if err != nil {
				return nil, "", err
			}
			return resp.Body, resp.RequestID, nil
		},
		Stream:    opts,
		OutputDir: outputDir,
		Logger:    slog.Default(),
	})
	return runTUI(ctx, m)
}

// runTUI runs the renderer until it quits or ctx ends. The state folded so
// far is returned in both cases, and the stream is always closed.
func runTUI(ctx context.Context, m app.Model, opts ...tea.ProgramOption) (stream.State, error) {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	final, err := tea.NewProgram(m, opts...).Run()

	fm, ok := final.(app.Model)
	if !ok {
		fm = m
	}
	fm.Close()

	if err != nil {
		return fm.State(), fmt.Errorf("run tui: %w", err)
	}
	return fm.State(), fm.Err()
}

// printUpdate writes a one-glance line for each update.
func printUpdate(w io.Writer, u stream.Update) {
	switch u := u.(type) {
	case stream.CardAppend:
		if text, ok := u.Card.Text(); ok {
			fmt.Fprintf(w, "■ %s\n%s\n\n", u.Card.Label, text)
		} else {
			fmt.Fprintf(w, "■ %s\n%s\n\n", u.Card.Label, stream.Serialize(u.Card.Result))
		}
	case stream.SummaryUpdate:
		fmt.Fprintf(w, "■ summary %v\n%s\n\n", u.Summary.Scores, u.Summary.Summary)
	case stream.AudioUpdate:
		fmt.Fprintf(w, "♪ audio sample received (%d bytes base64)\n\n", len(u.Audio.Base64))
	case stream.SlideModUpdate:
		fmt.Fprintln(w, "▣ slide modification received")
		fmt.Fprintln(w)
	}
}
