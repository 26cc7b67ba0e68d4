package ui

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// RunWithSpinner runs fn while showing msg and the elapsed time on stderr.
// Without a terminal fn runs with no output. Ctrl+C cancels fn's context.
func RunWithSpinner(ctx context.Context, msg string, fn func(ctx context.Context) error) error {
	if IsNoInteraction() {
		return fn(ctx)
	}

	m := &spinnerModel{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(accentStyle),
		),
		msg:     msg,
		started: time.Now(),
	}

	fnCtx, fnCancel := context.WithCancel(ctx)
	defer fnCancel()

	p := tea.NewProgram(m,
		tea.WithOutput(os.Stderr),
		tea.WithContext(ctx),
	)

	go func() {
		err := fn(fnCtx)
		p.Send(spinnerDoneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("spinner: %w", err)
	}
	if m.cancelled {
		return context.Canceled
	}
	return m.err
}

type spinnerDoneMsg struct{ err error }

type spinnerModel struct {
	spinner   spinner.Model
	msg       string
	started   time.Time
	err       error
	done      bool
	cancelled bool
}

func (m *spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancelled = true
			return m, tea.Quit
		}
	case spinnerDoneMsg:
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *spinnerModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	elapsed := time.Since(m.started).Truncate(time.Second)
	return m.spinner.View() + " " + m.msg + " " + Muted(elapsed.String()) + "\n"
}
