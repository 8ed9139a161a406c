package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/reviewmeeting/review/internal/app"
	"github.com/reviewmeeting/review/internal/stream"
)

const defaultReplayChunk = 4096

func newReplayCmd(g *globals) *cobra.Command {
	var (
		chunk  int
		query  string
		format string
		tui    bool
	)

	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Run a recorded NDJSON evaluation through the classifier",
		Long: `Read a recorded evaluation stream ("-" for stdin) in chunks of --chunk bytes
and print the final state. Small chunks exercise line reassembly across
reads; the result is the same for every chunk size.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.setupLogging(tui, cmd.ErrOrStderr()); err != nil {
				return err
			}

			opts := g.streamOptions()
			opts.ChunkSize = chunk

			if tui {
				m := app.New(app.Options{
					Context:   cmd.Context(),
					Title:     filepath.Base(args[0]),
					Source:    fileSource(args[0], cmd.InOrStdin()),
					Stream:    opts,
					OutputDir: g.cfg.OutputDir,
				})
				_, err := runTUI(cmd.Context(), m)
				return err
			}

			r, closeFn, err := openInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer closeFn()

			st, err := stream.Consume(cmd.Context(), r, opts)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), st, format, query)
		},
	}

	cmd.Flags().IntVar(&chunk, "chunk", defaultReplayChunk, "read size in bytes")
	cmd.Flags().StringVarP(&query, "query", "q", "", "jq expression applied to the final state (object keys in its results are sorted)")
	cmd.Flags().StringVarP(&format, "output", "o", FormatJSON, "output format: json or yaml")
	cmd.Flags().BoolVar(&tui, "tui", false, "show the replay in the terminal UI")
	return cmd
}

// openInput opens a file, or stdin for "-".
func openInput(path string, stdin io.Reader) (io.Reader, func() error, error) {
	if path == "-" {
		return stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open recording: %w", err)
	}
	return f, f.Close, nil
}

func fileSource(path string, stdin io.Reader) app.Source {
	return func(context.Context) (io.ReadCloser, string, error) {
		r, closeFn, err := openInput(path, stdin)
		if err != nil {
			return nil, "", err
		}
		return readCloser{Reader: r, close: closeFn}, "", nil
	}
}

type readCloser struct {
	io.Reader
	close func() error
}

func (rc readCloser) Close() error { return rc.close() }
