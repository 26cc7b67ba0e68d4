// Package config handles pinpost configuration and the on-disk layout of a
// pinpost root.
//
// Config is stored at $XDG_CONFIG_HOME/pinpost/config.yaml (defaults to
// ~/.config/pinpost/config.yaml). Every field is optional; a missing file
// yields Default().
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"gopkg.in/yaml.v3"
)

const (
	DefaultNodeVersion  = "v0.29.0"
	DefaultDistURL      = "https://dist.ipfs.tech"
	DefaultGatewayAddr  = "127.0.0.1:8080"
	DefaultAPIAddr      = "127.0.0.1:5001"
	DefaultReadyTimeout = 30 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// Node configures the kubo binary and daemon.
type Node struct {
	Version      string        `yaml:"version,omitempty"`
	DistURL      string        `yaml:"dist_url,omitempty"`
	GatewayAddr  string        `yaml:"gateway_addr,omitempty"`
	APIAddr      string        `yaml:"api_addr,omitempty"`
	ReadyTimeout time.Duration `yaml:"ready_timeout,omitempty"`
	StopTimeout  time.Duration `yaml:"stop_timeout,omitempty"`
	DaemonArgs   string        `yaml:"daemon_args,omitempty"` // shell-quoted extra `ipfs daemon` flags
}

// Telemetry configures optional trace export.
type Telemetry struct {
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"`
}

// Config is the full pinpost configuration.
type Config struct {
	Root      string    `yaml:"root,omitempty"`
	LogFormat string    `yaml:"log_format,omitempty"`
	Node      Node      `yaml:"node,omitempty"`
	Telemetry Telemetry `yaml:"telemetry,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Root: DefaultRoot(),
		Node: Node{
			Version:      DefaultNodeVersion,
			DistURL:      DefaultDistURL,
			GatewayAddr:  DefaultGatewayAddr,
			APIAddr:      DefaultAPIAddr,
			ReadyTimeout: DefaultReadyTimeout,
			StopTimeout:  DefaultStopTimeout,
		},
	}
}

// Path returns the config file location. It respects XDG_CONFIG_HOME,
// falling back to ~/.config/pinpost/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "pinpost", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "pinpost", "config.yaml")
}

// DefaultRoot returns the default data root. It respects XDG_DATA_HOME,
// falling back to ~/.local/share/pinpost.
func DefaultRoot() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".local", "share", "pinpost")
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "pinpost")
}

// Load reads the config file at path; an empty path means Path(). If the
// file does not exist, Default() is returned (not an error). Fields left
// empty in the file keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that configured endpoints are literal loopback ip:port
// pairs.
func (c *Config) Validate() error {
	for _, ep := range []struct{ field, addr string }{
		{"node.gateway_addr", c.Node.GatewayAddr},
		{"node.api_addr", c.Node.APIAddr},
	} {
		ap, err := netip.ParseAddrPort(ep.addr)
		if err != nil {
			return fmt.Errorf("%s %q: %w: %w", ep.field, ep.addr, errdefs.ErrInvalidArgument, err)
		}
		if !ap.Addr().IsLoopback() {
			return fmt.Errorf("%s %q must be a loopback address: %w", ep.field, ep.addr, errdefs.ErrInvalidArgument)
		}
	}
	if c.Node.ReadyTimeout < 0 || c.Node.StopTimeout < 0 {
		return fmt.Errorf("node timeouts must not be negative: %w", errdefs.ErrInvalidArgument)
	}
	return nil
}

func (c *Config) fillDefaults() {
	def := Default()
	if strings.TrimSpace(c.Root) == "" {
		c.Root = def.Root
	}
	c.Root = expandHome(c.Root)
	if c.Node.Version == "" {
		c.Node.Version = def.Node.Version
	}
	if c.Node.DistURL == "" {
		c.Node.DistURL = def.Node.DistURL
	}
	if c.Node.GatewayAddr == "" {
		c.Node.GatewayAddr = def.Node.GatewayAddr
	}
	if c.Node.APIAddr == "" {
		c.Node.APIAddr = def.Node.APIAddr
	}
	if c.Node.ReadyTimeout == 0 {
		c.Node.ReadyTimeout = def.Node.ReadyTimeout
	}
	if c.Node.StopTimeout == 0 {
		c.Node.StopTimeout = def.Node.StopTimeout
	}
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Layout returns the derived file layout under the configured root.
func (c *Config) Layout() Layout {
	return NewLayout(c.Root)
}

// Layout names every path pinpost owns under a root directory.
type Layout struct {
	Root      string
	Binary    string // kubo executable
	Repo      string // IPFS_PATH
	Staging   string // staged document tree
	KeyExport string // exported identity key
	DaemonLog string
	Journal   string
}

// NewLayout derives the layout for root.
func NewLayout(root string) Layout {
	bin := "ipfs"
	if runtime.GOOS == "windows" {
		bin = "ipfs.exe"
	}
	return Layout{
		Root:      root,
		Binary:    filepath.Join(root, "bin", bin),
		Repo:      filepath.Join(root, "repo"),
		Staging:   filepath.Join(root, "profile"),
		KeyExport: filepath.Join(root, "profile.key"),
		DaemonLog: filepath.Join(root, "daemon.log"),
		Journal:   filepath.Join(root, "journal.db"),
	}
}
