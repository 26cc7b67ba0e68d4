package kubo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Key is an entry of the node keystore.
type Key struct {
	Name string
	ID   string
}

// Client issues typed node commands against a single repository.
type Client struct {
	runner Runner
	repo   string
}

// NewClient returns a client bound to repo.
func NewClient(runner Runner, repo string) *Client {
	return &Client{runner: runner, repo: repo}
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	return c.runner.Run(ctx, c.repo, args...)
}

// Initialized reports whether the repository configuration marker exists.
func (c *Client) Initialized() bool {
	st, err := os.Stat(filepath.Join(c.repo, "config"))
	return err == nil && !st.IsDir()
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.run(ctx, "init")
	return err
}

func (c *Client) SetConfig(ctx context.Context, key, value string) error {
	_, err := c.run(ctx, "config", key, value)
	return err
}

// SetEndpoints points the gateway and control API at the given ip:port pairs.
func (c *Client) SetEndpoints(ctx context.Context, gatewayAddr, apiAddr string) error {
	endpoints := []struct{ key, addr string }{
		{key: "Addresses.Gateway", addr: gatewayAddr},
		{key: "Addresses.API", addr: apiAddr},
	}
	for _, ep := range endpoints {
		maddr, err := Multiaddr(ep.addr)
		if err != nil {
			return fmt.Errorf("%s: %w", ep.key, err)
		}
		if err := c.SetConfig(ctx, ep.key, maddr); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) ListKeys(ctx context.Context) ([]Key, error) {
	out, err := c.run(ctx, "key", "list", "--enc=json")
	if err != nil {
		return nil, err
	}
	return ParseKeys(out)
}

func (c *Client) ImportKey(ctx context.Context, name, path string) error {
	_, err := c.run(ctx, "key", "import", name, path)
	return err
}

func (c *Client) GenerateKey(ctx context.Context, name, keyType string, size int) error {
	_, err := c.run(ctx, "key", "gen", name, "--type="+keyType, "--size="+strconv.Itoa(size))
	return err
}

// ExportKey writes the named key to path, replacing any previous export.
// The node refuses to overwrite files, so the key is exported next to path
// and renamed into place.
func (c *Client) ExportKey(ctx context.Context, name, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("reserve export file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	if err := os.Remove(tmpPath); err != nil {
		return fmt.Errorf("reserve export file: %w", err)
	}

	if _, err := c.run(ctx, "key", "export", name, "--output="+tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move key export into place: %w", err)
	}
	return nil
}

// Add stores dir recursively and returns its content root.
func (c *Client) Add(ctx context.Context, dir string) (string, error) {
	out, err := c.run(ctx, "add", "-Qr", "--cid-version=1", "--raw-leaves", dir)
	if err != nil {
		return "", err
	}
	return ParseRoot(out)
}

// RecursivePins lists every recursively pinned root.
func (c *Client) RecursivePins(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, "pin", "ls", "--type=recursive", "--enc=json")
	if err != nil {
		return nil, err
	}
	return ParsePins(out)
}

func (c *Client) Unpin(ctx context.Context, root string) error {
	_, err := c.run(ctx, "pin", "rm", root)
	return err
}

// Publish binds key's naming record to path and returns the published name.
func (c *Client) Publish(ctx context.Context, key, path string) (string, error) {
	out, err := c.run(ctx, "name", "publish", "--key="+key, "--enc=json", path)
	if err != nil {
		return "", err
	}
	return ParsePublished(out)
}

// Version returns the node version reported by `ipfs --version`.
func (c *Client) Version(ctx context.Context) (string, error) {
	out, err := c.run(ctx, "--version")
	if err != nil {
		return "", err
	}
	v := ParseVersion(out)
	if v == "" {
		return "", errors.New("empty version output")
	}
	return v, nil
}
