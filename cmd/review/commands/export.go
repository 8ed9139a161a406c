package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reviewmeeting/review/internal/artifact"
	"github.com/reviewmeeting/review/internal/stream"
)

func newExportCmd(g *globals) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write the audio sample and slide suggestion of a recorded evaluation",
		Long: `Replay a recorded evaluation stream ("-" for stdin) and write its binary
results: sample.wav, slide.png and slide.txt. Slots the evaluation did not
produce are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.setupLogging(false, cmd.ErrOrStderr()); err != nil {
				return err
			}
			if dir == "" {
				dir = g.cfg.OutputDir
			}

			r, closeFn, err := openInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer closeFn()

			st, err := stream.Consume(cmd.Context(), r, g.streamOptions())
			if err != nil {
				return err
			}

			saved, err := artifact.Save(dir, st)
			if err != nil {
				return err
			}
			for _, p := range saved.Paths() {
				fmt.Fprintf(cmd.OutOrStdout(), "✓ wrote %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "output directory (default from config)")
	return cmd
}
