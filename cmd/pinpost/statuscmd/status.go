// Package statuscmd implements "pinpost status".
package statuscmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"pinpost/cmd/pinpost/cmdutil"
	"pinpost/cmd/pinpost/ui"
	"pinpost/internal/journal"
	"pinpost/internal/kubo"
	"pinpost/internal/lifecycle"

	"github.com/spf13/cobra"
)

// Cmd returns the "pinpost status" command. It works with the daemon
// stopped; anything that cannot be read is shown as unavailable.
func Cmd(g *cmdutil.Globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show node installation, identity, pins and the last publish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := g.Config()
			layout := cfg.Layout()
			installer := cmdutil.NewInstaller(cfg)
			node := cmdutil.NewNode(cfg)

			pairs := []ui.Pair{
				ui.KV("Root", layout.Root),
				ui.KV("Binary", ui.Bool(installer.IsPresent())),
			}

			err := ui.RunWithSpinner(cmd.Context(), "Reading node state", func(ctx context.Context) error {
				if !installer.IsPresent() {
					return nil
				}
				pairs = append(pairs, ui.KV("Version", orUnavailable(node.Version(ctx))))
				pairs = append(pairs, ui.KV("Repository", ui.Bool(node.Initialized())))
				if !node.Initialized() {
					return nil
				}
				pairs = append(pairs, ui.KV("Identity", identity(ctx, node)))
				pairs = append(pairs, ui.KV("Pins", pins(ctx, node)))
				return nil
			})
			if err != nil {
				return err
			}

			pairs = append(pairs, ui.KV("Key export", ui.Bool(fileExists(layout.KeyExport))))
			pairs = append(pairs, lastPublish(cmd.Context(), layout.Journal)...)

			fmt.Fprint(cmd.OutOrStdout(), ui.KeyValues("  ", pairs...))
			return nil
		},
	}
}

func identity(ctx context.Context, node *kubo.Client) string {
	keys, err := node.ListKeys(ctx)
	if err != nil {
		slog.Debug("List keys failed.", "err", err)
		return ui.Muted("unavailable")
	}
	for _, k := range keys {
		if k.Name == lifecycle.KeyName {
			return k.ID
		}
	}
	return ui.Muted("none")
}

func pins(ctx context.Context, node *kubo.Client) string {
	roots, err := node.RecursivePins(ctx)
	if err != nil {
		slog.Debug("List pins failed.", "err", err)
		return ui.Muted("unavailable")
	}
	if len(roots) == 0 {
		return ui.Muted("none")
	}
	return strings.Join(roots, ", ")
}

func lastPublish(ctx context.Context, path string) []ui.Pair {
	if !fileExists(path) {
		return []ui.Pair{ui.KV("Last publish", ui.Muted("never"))}
	}
	store, err := journal.Open(path)
	if err != nil {
		slog.Debug("Open journal failed.", "err", err)
		return []ui.Pair{ui.KV("Last publish", ui.Muted("unavailable"))}
	}
	defer store.Close()

	entry, found, err := store.Last(ctx)
	switch {
	case err != nil:
		slog.Debug("Read journal failed.", "err", err)
		return []ui.Pair{ui.KV("Last publish", ui.Muted("unavailable"))}
	case !found:
		return []ui.Pair{ui.KV("Last publish", ui.Muted("never"))}
	}
	return []ui.Pair{
		ui.KV("Last publish", entry.PublishedAt.Local().Format(time.DateTime)),
		ui.KV("Name", entry.Name),
		ui.KV("Content root", entry.Root),
		ui.KV("Unpinned", strconv.Itoa(len(entry.Unpinned))),
	}
}

func orUnavailable(v string, err error) string {
	if err != nil {
		slog.Debug("Node query failed.", "err", err)
		return ui.Muted("unavailable")
	}
	return v
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}
