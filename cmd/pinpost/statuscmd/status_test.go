//go:build unix

package statuscmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pinpost/cmd/pinpost/cmdutil"
	"pinpost/internal/journal"
)

const fakeNode = `#!/bin/sh
case "$1" in
--version) echo "ipfs version 0.29.0" ;;
key) echo '{"Keys":[{"Name":"self","Id":"k51peer"},{"Name":"profile","Id":"k51profile"}]}' ;;
pin) echo "Error: api not running" >&2; exit 1 ;;
*) exit 2 ;;
esac
`

func setup(t *testing.T) (*cmdutil.Globals, string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	root := filepath.Join(dir, "root")

	g := &cmdutil.Globals{Root: root, NoInteraction: true}
	if err := g.Setup(); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	return g, root
}

func runStatus(t *testing.T, g *cmdutil.Globals) string {
	t.Helper()
	var out bytes.Buffer
	cmd := Cmd(g)
	cmd.SetArgs([]string{})
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("status error = %v", err)
	}
	return out.String()
}

// field returns the value printed for key, or "" with ok=false.
func field(out, key string) (string, bool) {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if rest, found := strings.CutPrefix(line, key+":"); found {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

func expect(t *testing.T, out, key, want string) {
	t.Helper()
	got, ok := field(out, key)
	if !ok {
		t.Errorf("%s missing from output:\n%s", key, out)
		return
	}
	if got != want {
		t.Errorf("%s = %q, want %q", key, got, want)
	}
}

func TestStatusEmptyRoot(t *testing.T) {
	g, root := setup(t)

	out := runStatus(t, g)

	expect(t, out, "Root", root)
	expect(t, out, "Binary", "no")
	expect(t, out, "Key export", "no")
	expect(t, out, "Last publish", "never")
	if _, ok := field(out, "Version"); ok {
		t.Errorf("node queries must be skipped without a binary:\n%s", out)
	}
}

func TestStatusDegradesFailedQueries(t *testing.T) {
	g, root := setup(t)
	layout := g.Config().Layout()
	if err := os.MkdirAll(filepath.Dir(layout.Binary), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(layout.Binary, []byte(fakeNode), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(layout.Repo, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(layout.Repo, "config"), []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(layout.KeyExport, []byte("key"), 0o600); err != nil {
		t.Fatal(err)
	}

	store, err := journal.Open(layout.Journal)
	if err != nil {
		t.Fatal(err)
	}
	_, err = store.Record(context.Background(), journal.Entry{
		Root:        "bafyroot",
		Name:        "k51profile",
		Unpinned:    []string{"bafyold", "bafyolder"},
		PublishedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	out := runStatus(t, g)

	expect(t, out, "Root", root)
	expect(t, out, "Binary", "yes")
	expect(t, out, "Version", "0.29.0")
	expect(t, out, "Repository", "yes")
	expect(t, out, "Identity", "k51profile")
	expect(t, out, "Pins", "unavailable")
	expect(t, out, "Key export", "yes")
	expect(t, out, "Last publish", "2024-05-01 10:00:00")
	expect(t, out, "Name", "k51profile")
	expect(t, out, "Content root", "bafyroot")
	expect(t, out, "Unpinned", "2")
}

func TestStatusUninitializedRepo(t *testing.T) {
	g, _ := setup(t)
	layout := g.Config().Layout()
	if err := os.MkdirAll(filepath.Dir(layout.Binary), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(layout.Binary, []byte(fakeNode), 0o755); err != nil {
		t.Fatal(err)
	}

	out := runStatus(t, g)

	expect(t, out, "Repository", "no")
	for _, key := range []string{"Identity", "Pins"} {
		if _, ok := field(out, key); ok {
			t.Errorf("%s must be skipped for an uninitialized repo:\n%s", key, out)
		}
	}
}

func TestStatusUnreadableJournal(t *testing.T) {
	g, _ := setup(t)
	layout := g.Config().Layout()
	if err := os.MkdirAll(layout.Root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(layout.Journal, []byte(strings.Repeat("not a database\n", 64)), 0o644); err != nil {
		t.Fatal(err)
	}

	out := runStatus(t, g)

	expect(t, out, "Last publish", "unavailable")
}
