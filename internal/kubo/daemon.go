package kubo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/containerd/errdefs"
)

// ErrDaemonNotReady is returned when the daemon never answered on its
// control API. It matches errdefs.ErrUnavailable.
var ErrDaemonNotReady = fmt.Errorf("daemon failed to become ready: %w", errdefs.ErrUnavailable)

// Daemon runs `ipfs daemon` as a background child process.
type Daemon struct {
	binary       string
	repo         string
	apiAddr      string
	logPath      string
	args         []string
	readyTimeout time.Duration

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
	logf   io.WriteCloser
}

// DaemonOption configures a Daemon.
type DaemonOption func(*Daemon)

// WithLogFile appends daemon stdout and stderr to path. Without it the
// daemon output is discarded.
func WithLogFile(path string) DaemonOption {
	return func(d *Daemon) { d.logPath = path }
}

// WithDaemonArgs appends extra flags to `ipfs daemon`.
func WithDaemonArgs(args ...string) DaemonOption {
	return func(d *Daemon) { d.args = append(d.args, args...) }
}

// WithReadyTimeout bounds how long Start waits for the control API.
func WithReadyTimeout(timeout time.Duration) DaemonOption {
	return func(d *Daemon) { d.readyTimeout = timeout }
}

// NewDaemon creates a daemon handle for repo whose control API listens on
// apiAddr (ip:port).
func NewDaemon(binary, repo, apiAddr string, opts ...DaemonOption) *Daemon {
	d := &Daemon{
		binary:       binary,
		repo:         repo,
		apiAddr:      apiAddr,
		readyTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the daemon and blocks until its control API answers.
// If the API address is already taken, the process exits early, the ready
// timeout elapses or the answering node is not this repo's identity, the
// process is killed and ErrDaemonNotReady is returned.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd != nil {
		return fmt.Errorf("daemon already started (pid %d)", d.cmd.Process.Pid)
	}
	if apiInUse(d.apiAddr) {
		return fmt.Errorf("%w: control api address %s is already in use", ErrDaemonNotReady, d.apiAddr)
	}

	args := append([]string{"daemon"}, d.args...)
	cmd := exec.Command(d.binary, args...)
	cmd.Env = commandEnv(d.repo)
	setProcessGroup(cmd)

	var out io.Writer = io.Discard
	if d.logPath != "" {
		if err := os.MkdirAll(filepath.Dir(d.logPath), 0o755); err != nil {
			return fmt.Errorf("create daemon log dir: %w", err)
		}
		f, err := os.OpenFile(d.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open daemon log: %w", err)
		}
		d.logf = f
		out = f
	}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		d.closeLog()
		return fmt.Errorf("start daemon process: %w", err)
	}
	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		slog.Debug("Daemon process exited.", "component", "kubo", "err", err)
		close(exited)
	}()

	log := slog.With("component", "kubo", "pid", cmd.Process.Pid)
	peerID, err := WaitReady(ctx, d.apiAddr, d.readyTimeout, exited)
	if err == nil {
		err = d.checkAnswer(peerID, exited)
	}
	if err != nil {
		_ = cmd.Process.Kill() // best-effort cleanup
		<-exited
		d.closeLog()
		return err
	}

	d.cmd = cmd
	d.exited = exited
	log.Info("Daemon started.", "api", d.apiAddr)
	return nil
}

// Stop interrupts the daemon and waits for it to exit, killing it if ctx
// expires first. Stopping a daemon that was never started is a no-op.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cmd == nil {
		return nil
	}
	defer func() {
		d.cmd = nil
		d.closeLog()
	}()

	if err := interruptProcess(d.cmd); err != nil {
		// Process may have already exited.
		slog.Debug("Interrupt daemon.", "component", "kubo", "err", err)
	}

	select {
	case <-d.exited:
		return nil
	case <-ctx.Done():
		_ = d.cmd.Process.Kill() // best-effort force kill
		<-d.exited
		return fmt.Errorf("stop daemon process: %w", ctx.Err())
	}
}

// checkAnswer rejects a ready answer that did not come from the spawned
// child.
func (d *Daemon) checkAnswer(peerID string, exited <-chan struct{}) error {
	select {
	case <-exited:
		return fmt.Errorf("%w: process exited but %s still answers", ErrDaemonNotReady, d.apiAddr)
	default:
	}
	if want := repoPeerID(d.repo); want != "" && peerID != want {
		return fmt.Errorf("%w: %s answered as peer %q, repo identity is %q", ErrDaemonNotReady, d.apiAddr, peerID, want)
	}
	return nil
}

func (d *Daemon) closeLog() {
	if d.logf == nil {
		return
	}
	if err := d.logf.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		slog.Debug("Close daemon log.", "component", "kubo", "err", err)
	}
	d.logf = nil
}
