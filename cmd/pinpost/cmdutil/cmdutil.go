// Package cmdutil holds flag plumbing and collaborator wiring shared by the
// pinpost subcommands.
package cmdutil

import (
	"fmt"
	"path/filepath"
	"strings"

	"pinpost/cmd/pinpost/ui"
	"pinpost/config"
	"pinpost/internal/kubo"
	"pinpost/internal/logging"
	"pinpost/internal/provision"

	"github.com/google/shlex"
	"github.com/spf13/cobra"
)

// Globals are the root persistent flags.
type Globals struct {
	Debug         bool
	ConfigPath    string
	Root          string
	NoInteraction bool

	cfg *config.Config
}

func (g *Globals) Bind(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.BoolVar(&g.Debug, "debug", false, "Enable debug logging")
	flags.StringVar(&g.ConfigPath, "config", "", "Config file (default "+config.Path()+")")
	flags.StringVar(&g.Root, "root", "", "Data root holding the node binary, repository and staged documents")
	flags.BoolVar(&g.NoInteraction, "no-interaction", false, "Never prompt; read values from flags and stdin")
}

// Setup loads configuration and configures logging and interaction. It runs
// once per invocation from the root PersistentPreRunE.
func (g *Globals) Setup() error {
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return err
	}
	if root := strings.TrimSpace(g.Root); root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("resolve --root: %w", err)
		}
		cfg.Root = abs
	}

	level := logging.LevelWarn
	if g.Debug {
		level = logging.LevelDebug
	}
	if err := logging.Configure(level, cfg.LogFormat); err != nil {
		return err
	}
	ui.ConfigureInteraction(g.NoInteraction)

	g.cfg = cfg
	return nil
}

// Config returns the configuration loaded by Setup.
func (g *Globals) Config() *config.Config {
	if g.cfg == nil {
		return config.Default()
	}
	return g.cfg
}

func NewInstaller(cfg *config.Config) *provision.Installer {
	return provision.New(cfg.Layout().Binary, cfg.Node.Version, cfg.Node.DistURL)
}

func NewNode(cfg *config.Config) *kubo.Client {
	layout := cfg.Layout()
	return kubo.NewClient(kubo.NewExecRunner(layout.Binary), layout.Repo)
}

func NewDaemon(cfg *config.Config) (*kubo.Daemon, error) {
	args, err := shlex.Split(cfg.Node.DaemonArgs)
	if err != nil {
		return nil, fmt.Errorf("parse node.daemon_args: %w", err)
	}
	layout := cfg.Layout()
	return kubo.NewDaemon(layout.Binary, layout.Repo, cfg.Node.APIAddr,
		kubo.WithLogFile(layout.DaemonLog),
		kubo.WithDaemonArgs(args...),
		kubo.WithReadyTimeout(cfg.Node.ReadyTimeout),
	), nil
}

// GatewayURL is where a published name can be fetched through the local
// gateway.
func GatewayURL(cfg *config.Config, name string) string {
	return fmt.Sprintf("http://%s/ipns/%s/", cfg.Node.GatewayAddr, name)
}
