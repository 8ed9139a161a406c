package commands

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/reviewmeeting/review/internal/app"
	"github.com/reviewmeeting/review/internal/history"
	"github.com/reviewmeeting/review/internal/ui"
)

func newHistoryCmd(g *globals) *cobra.Command {
	var (
		userID string
		latest bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past evaluations from the backend database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := g.setupLogging(false, cmd.ErrOrStderr()); err != nil {
				return err
			}
			if userID == "" {
				userID = g.cfg.UserID
			}
			if userID == "" {
				return errors.New("no user id: pass --user or set user_id")
			}
			if g.cfg.DBPath == "" {
				return errors.New("no database: set db_path or REVIEW_DB_PATH")
			}

			store, err := history.Open(g.cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			var evals []history.Evaluation
			if latest {
				ev, err := store.LatestForUser(userID)
				if err != nil {
					return err
				}
				if ev != nil {
					evals = append(evals, *ev)
				}
			} else {
				evals, err = store.ResultsForUser(userID)
				if err != nil {
					return err
				}
			}

			if format == FormatTable {
				return writeHistoryTable(cmd.OutOrStdout(), evals)
			}
			if evals == nil {
				evals = []history.Evaluation{}
			}
			return writeResult(cmd.OutOrStdout(), evals, format, "")
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (default from config)")
	cmd.Flags().BoolVar(&latest, "latest", false, "only the most recent evaluation")
	cmd.Flags().StringVarP(&format, "output", "o", FormatTable, "output format: table, json or yaml")
	return cmd
}

func writeHistoryTable(w io.Writer, evals []history.Evaluation) error {
	if len(evals) == 0 {
		_, err := fmt.Fprintln(w, "No evaluations.")
		return err
	}

	headers := []string{"date"}
	headers = append(headers, app.ScoreLabels[:]...)
	headers = append(headers, "summary")

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(ui.TableBorderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return ui.TableHeaderStyle
			}
			return ui.TableCellStyle
		})
	for _, ev := range evals {
		row := []string{ev.Date.Format("2006-01-02 15:04")}
		for _, s := range ev.Summary.Scores {
			row = append(row, strconv.FormatFloat(s, 'g', -1, 64))
		}
		row = append(row, truncate(ev.Summary.Summary, 40))
		t.Row(row...)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
