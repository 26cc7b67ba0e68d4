// Package installcmd implements "pinpost install".
package installcmd

import (
	"context"
	"fmt"

	"pinpost/cmd/pinpost/cmdutil"
	"pinpost/cmd/pinpost/ui"

	"github.com/spf13/cobra"
)

func Cmd(g *cmdutil.Globals) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Download the node binary without starting anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := g.Config()
			installer := cmdutil.NewInstaller(cfg)
			stderr := cmd.ErrOrStderr()

			if installer.IsPresent() && !force {
				fmt.Fprintln(stderr, ui.InfoMsg("Node binary already installed at %s.", installer.BinaryPath()))
			} else {
				msg := fmt.Sprintf("Installing kubo %s", cfg.Node.Version)
				if err := ui.RunWithSpinner(cmd.Context(), msg, installer.Install); err != nil {
					return err
				}
				fmt.Fprintln(stderr, ui.SuccessMsg("Installed %s", installer.BinaryPath()))
			}

			version, err := cmdutil.NewNode(cfg).Version(context.WithoutCancel(cmd.Context()))
			if err != nil {
				return fmt.Errorf("check installed binary: %w", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), ui.KeyValues("  ",
				ui.KV("Binary", installer.BinaryPath()),
				ui.KV("Version", version),
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Reinstall even if the binary is present")
	return cmd
}
