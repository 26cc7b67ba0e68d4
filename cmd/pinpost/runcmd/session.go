package runcmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"pinpost/cmd/pinpost/ui"
	"pinpost/internal/stage"
)

// terminal is the slice of ui.TelemetryOutput the session needs.
type terminal interface {
	Suspend(fn func() error) error
}

type field struct {
	label string
	flag  string
	value *string
	set   bool
}

// session collects profile fields from flags, falling back to prompts on an
// interactive terminal, and waits for the operator to stop the node.
type session struct {
	input       stage.Input
	nameSet     bool
	bioSet      bool
	postSet     bool
	interactive bool
	term        terminal
	stdin       io.Reader
	stderr      io.Writer
	gatewayURL  func(name string) string

	prompt func(label, placeholder, hint string) (string, error)
	wait   func(ctx context.Context, message string) error
}

func (s *session) Collect(context.Context) (stage.Input, error) {
	in := s.input
	fields := []field{
		{label: "Display name", flag: "name", value: &in.Name, set: s.nameSet},
		{label: "Bio", flag: "bio", value: &in.Bio, set: s.bioSet},
		{label: "First post", flag: "post", value: &in.Post, set: s.postSet},
	}

	var missing []field
	for _, f := range fields {
		if !f.set {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 {
		return in, nil
	}
	if !s.interactive {
		f := missing[0]
		return stage.Input{}, fmt.Errorf("%s: %w", strings.ToLower(f.label),
			&ui.ErrNoInteraction{Hint: fmt.Sprintf("use --%s <value>", f.flag)})
	}

	err := s.term.Suspend(func() error {
		for _, f := range missing {
			v, err := s.prompt(f.label, "", fmt.Sprintf("use --%s <value>", f.flag))
			if err != nil {
				return fmt.Errorf("%s: %w", strings.ToLower(f.label), err)
			}
			*f.value = strings.TrimSpace(v)
		}
		return nil
	})
	if err != nil {
		return stage.Input{}, err
	}
	return in, nil
}

func (s *session) Serving(root, name string) {
	fmt.Fprintln(s.stderr)
	fmt.Fprintln(s.stderr, ui.SuccessMsg("Published %s", ui.Bold(name)))
	fmt.Fprint(s.stderr, ui.KeyValues("  ",
		ui.KV("Root", root),
		ui.KV("Gateway", s.gatewayURL(name)),
	))
}

// AwaitStop returns when the operator asks to stop: enter on a terminal, a
// line or EOF on stdin otherwise.
func (s *session) AwaitStop(ctx context.Context) error {
	if s.interactive {
		return s.term.Suspend(func() error {
			return s.wait(ctx, "Node is serving.")
		})
	}

	fmt.Fprintln(s.stderr, ui.InfoMsg("Node is serving. Send a line or close stdin to stop."))
	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(s.stdin).ReadString('\n')
		if errors.Is(err, io.EOF) {
			err = nil
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("read stop acknowledgment: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
