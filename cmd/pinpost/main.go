package main

import (
	"fmt"
	"os"

	"pinpost/cmd/pinpost/cmdutil"
	"pinpost/cmd/pinpost/historycmd"
	"pinpost/cmd/pinpost/installcmd"
	"pinpost/cmd/pinpost/runcmd"
	"pinpost/cmd/pinpost/statuscmd"
	"pinpost/internal/buildinfo"
	"pinpost/internal/logging"

	"github.com/spf13/cobra"
)

func main() {
	if err := logging.Configure(logging.LevelWarn, logging.FormatText); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	globals := &cmdutil.Globals{}
	root := &cobra.Command{
		Use:           "pinpost",
		Short:         "Publish a small profile from a local content-addressed node",
		Version:       buildinfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return globals.Setup()
		},
	}
	globals.Bind(root)

	root.AddCommand(runcmd.Cmd(globals))
	root.AddCommand(installcmd.Cmd(globals))
	root.AddCommand(statuscmd.Cmd(globals))
	root.AddCommand(historycmd.Cmd(globals))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
