// Package runcmd implements "pinpost run": one full publish cycle.
package runcmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pinpost/cmd/pinpost/cmdutil"
	"pinpost/cmd/pinpost/ui"
	"pinpost/internal/journal"
	"pinpost/internal/lifecycle"
	"pinpost/internal/stage"

	"github.com/spf13/cobra"
)

func Cmd(g *cmdutil.Globals) *cobra.Command {
	var in stage.Input

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the node, publish the profile and serve it until stopped",
		Long: `Run provisions the node binary if needed, prepares the repository and
identity key, starts the daemon, stages and publishes the profile documents,
then serves them until you stop it. The identity key is exported on the way
out so the next run keeps the same name.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := g.Config()
			layout := cfg.Layout()

			daemon, err := cmdutil.NewDaemon(cfg)
			if err != nil {
				return err
			}

			out, err := ui.NewTelemetryOutput(ctx, cfg.Telemetry.OTLPEndpoint)
			if err != nil {
				return err
			}
			defer out.Close()

			flags := cmd.Flags()
			sess := &session{
				input:       in,
				nameSet:     flags.Changed("name"),
				bioSet:      flags.Changed("bio"),
				postSet:     flags.Changed("post"),
				interactive: ui.IsInteractive(),
				term:        out,
				stdin:       cmd.InOrStdin(),
				stderr:      cmd.ErrOrStderr(),
				gatewayURL:  func(name string) string { return cmdutil.GatewayURL(cfg, name) },
				prompt:      ui.Prompt,
				wait:        ui.WaitForStop,
			}

			deps := lifecycle.Deps{
				Provisioner: cmdutil.NewInstaller(cfg),
				Node:        cmdutil.NewNode(cfg),
				Daemon:      daemon,
				Session:     sess,
				Stager:      stage.Writer{Dir: layout.Staging},
			}
			if j, err := journal.Open(layout.Journal); err != nil {
				slog.Warn("Publish journal unavailable.", "path", layout.Journal, "err", err)
			} else {
				defer j.Close()
				deps.Journal = j
			}

			ctrl := lifecycle.New(lifecycle.Settings{
				GatewayAddr:   cfg.Node.GatewayAddr,
				APIAddr:       cfg.Node.APIAddr,
				KeyExportPath: layout.KeyExport,
				StopTimeout:   cfg.Node.StopTimeout,
			}, deps, lifecycle.WithTracer(out.Tracer("pinpost/run")))

			res, err := ctrl.Run(ctx)
			out.Close()
			if err != nil {
				return err
			}

			stderr := cmd.ErrOrStderr()
			for _, w := range res.Warnings {
				fmt.Fprintln(stderr, ui.WarnMsg("%s", w))
			}
			fmt.Fprintln(stderr, ui.SuccessMsg("Node stopped. Last published %s under %s.", res.Root, res.Name))
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Name, "name", "", "Display name (prompted when omitted)")
	cmd.Flags().StringVar(&in.Bio, "bio", "", "Profile bio (prompted when omitted)")
	cmd.Flags().StringVar(&in.Post, "post", "", "First post body (prompted when omitted)")
	return cmd
}
