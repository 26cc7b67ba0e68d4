// Package historycmd implements "pinpost history".
package historycmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"pinpost/cmd/pinpost/cmdutil"
	"pinpost/cmd/pinpost/ui"
	"pinpost/internal/journal"

	"github.com/spf13/cobra"
)

func Cmd(g *cmdutil.Globals) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past publishes recorded in the local journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			path := g.Config().Layout().Journal
			if _, err := os.Stat(path); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), ui.InfoMsg("No publishes recorded yet."))
				return nil
			}

			store, err := journal.Open(path)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), ui.InfoMsg("No publishes recorded yet."))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Table(
				[]string{"PUBLISHED", "NAME", "ROOT", "UNPINNED", "WARNINGS"},
				Rows(entries),
			))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to show (0 for all)")
	return cmd
}

// Rows formats entries as table rows, newest first as given.
func Rows(entries []journal.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		warnings := "-"
		if len(e.Warnings) > 0 {
			warnings = strings.Join(e.Warnings, "; ")
		}
		rows = append(rows, []string{
			e.PublishedAt.Local().Format(time.DateTime),
			e.Name,
			e.Root,
			strconv.Itoa(len(e.Unpinned)),
			warnings,
		})
	}
	return rows
}
