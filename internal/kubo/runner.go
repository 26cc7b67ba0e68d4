// Package kubo drives a local kubo node through its command-line surface.
//
// Every command is executed against an explicit repository path: the Runner
// receives the path on each call and exposes it to the child process only,
// never through the pinpost process environment.
package kubo

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// repoEnv is the environment variable kubo reads its repository path from.
const repoEnv = "IPFS_PATH"

// Runner executes one node subcommand against repo and returns its stdout.
type Runner interface {
	Run(ctx context.Context, repo string, args ...string) ([]byte, error)
}

// CommandError reports a failed node command together with the text the
// node wrote to stderr.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	cmd := "ipfs " + strings.Join(e.Args, " ")
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %s: %v", cmd, e.Stderr, e.Err)
	}
	return fmt.Sprintf("%s: %v", cmd, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExecRunner runs the kubo binary as a child process.
type ExecRunner struct {
	Binary string
}

// NewExecRunner returns a runner for the binary at path.
func NewExecRunner(binary string) *ExecRunner {
	return &ExecRunner{Binary: binary}
}

func (r *ExecRunner) Run(ctx context.Context, repo string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Env = commandEnv(repo)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Run node command.", "component", "kubo", "args", args, "repo", repo)
	if err := cmd.Run(); err != nil {
		return nil, &CommandError{
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return stdout.Bytes(), nil
}

// commandEnv returns the inherited environment with IPFS_PATH pinned to repo.
func commandEnv(repo string) []string {
	parent := os.Environ()
	env := make([]string, 0, len(parent)+1)
	for _, kv := range parent {
		if strings.HasPrefix(kv, repoEnv+"=") {
			continue
		}
		env = append(env, kv)
	}
	return append(env, repoEnv+"="+repo)
}
