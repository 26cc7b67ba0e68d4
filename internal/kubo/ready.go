package kubo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	readyInitialInterval = 50 * time.Millisecond
	readyMaxInterval     = 1 * time.Second
)

var errDaemonExited = errors.New("daemon process exited")

// WaitReady blocks until the control API at apiAddr answers POST
// /api/v0/id with 200, the timeout elapses, or exited is closed. It returns
// the peer ID reported by the answering node. A nil exited channel never
// fires.
func WaitReady(ctx context.Context, apiAddr string, timeout time.Duration, exited <-chan struct{}) (string, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	url := "http://" + apiAddr + "/api/v0/id"

	var peerID string
	check := func() error {
		select {
		case <-exited:
			return backoff.Permanent(errDaemonExited)
		default:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			_, _ = io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("control api status %d", resp.StatusCode)
		}
		var id struct {
			ID string
		}
		if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
			return fmt.Errorf("decode id response: %w", err)
		}
		peerID = id.ID
		return nil
	}

	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(readyInitialInterval),
		backoff.WithMaxInterval(readyMaxInterval),
		backoff.WithMaxElapsedTime(timeout),
	)
	if err := backoff.Retry(check, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, errDaemonExited) {
			return "", fmt.Errorf("%w: process exited before control api answered", ErrDaemonNotReady)
		}
		return "", fmt.Errorf("%w: no answer on %s after %s: %w", ErrDaemonNotReady, apiAddr, timeout, err)
	}
	return peerID, nil
}

// apiInUse reports whether something already accepts connections on apiAddr.
func apiInUse(apiAddr string) bool {
	conn, err := net.DialTimeout("tcp", apiAddr, 500*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// repoPeerID reads Identity.PeerID from the repository config. It returns
// "" when the repo has no readable config.
func repoPeerID(repo string) string {
	data, err := os.ReadFile(filepath.Join(repo, "config"))
	if err != nil {
		return ""
	}
	var cfg struct {
		Identity struct {
			PeerID string
		}
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return ""
	}
	return cfg.Identity.PeerID
}
