package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/reviewmeeting/review/internal/config"
	"github.com/reviewmeeting/review/internal/stream"
)

// Version is set at build time.
var Version = "dev"

// globals holds the persistent flags and the loaded configuration.
type globals struct {
	configPath string
	logLevel   string
	cfg        *config.Config
	logCloser  io.Closer
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "review",
		Short: "Live presentation review client",
		Long: `review - submit a presentation for AI review and follow the agents' results live.

The backend streams one JSON record per line; each record is classified into
a result card, the summary scores, a reference audio sample or a slide
suggestion, and rendered as it arrives.

Configuration is read from ~/.review/config.yaml, then .env in the working
directory, then REVIEW_* environment variables.

Examples:
  # Evaluate a presentation in the terminal UI
  review submit --slide deck.pdf --audio talk.wav --user u-123

  # Re-run a recorded stream in small chunks and pick out the scores
  review replay evaluation.ndjson --chunk 7 --query '.summary.scores'

  # Show past evaluations
  review history --user u-123`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			g.closeLog()
		},
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default ~/.review/config.yaml)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newSubmitCmd(g),
		newReplayCmd(g),
		newHistoryCmd(g),
		newExportCmd(g),
		newMCPCmd(g),
	)
	return root
}

func (g *globals) load() error {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	g.cfg = cfg
	return nil
}

// setupLogging installs the default slog logger. While a TUI owns the
// terminal, logs go to the configured log file; otherwise to stderr.
func (g *globals) setupLogging(toFile bool, stderr io.Writer) error {
	w := stderr
	if toFile {
		if err := os.MkdirAll(filepath.Dir(g.cfg.LogFile), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(g.cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		g.logCloser = f
		w = f
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: g.cfg.Level()})))
	return nil
}

func (g *globals) closeLog() {
	if g.logCloser != nil {
		g.logCloser.Close()
		g.logCloser = nil
	}
}

func (g *globals) streamOptions() stream.Options {
	return stream.Options{
		FlushTrailing: g.cfg.FlushTrailing,
		Lenient:       g.cfg.LenientLines,
		Logger:        slog.Default(),
	}
}

// withTimeout applies the configured evaluation timeout, if any.
func (g *globals) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := g.cfg.TimeoutDuration(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
