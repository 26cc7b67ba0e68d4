package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var spinFrames = [...]string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Checklist renders telemetry snapshots as a terminal checklist.
// Pending steps are muted, running steps show a braille spinner,
// done steps show a checkmark (a ! when they warned), failed steps a red x.
type Checklist struct {
	out           io.Writer
	steps         []stepState
	renderedLines int
	paused        bool
	mu            sync.Mutex
	stop          chan struct{}
	frame         int
	started       sync.Once
	once          sync.Once
}

// NewChecklist creates a Checklist ready to receive telemetry snapshots.
func NewChecklist() *Checklist {
	return &Checklist{out: os.Stderr, stop: make(chan struct{})}
}

// OnSnapshot updates the checklist on each telemetry snapshot.
func (c *Checklist) OnSnapshot(snap stepSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.steps = snap.Steps
	c.started.Do(func() { go c.spin() })
	if c.paused {
		return
	}
	c.redraw()
}

// Pause stops redrawing so other terminal output can run. The checklist is
// printed afresh below that output on Resume.
func (c *Checklist) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

func (c *Checklist) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
	c.renderedLines = 0
	c.redraw()
}

// Close stops the spinner.
func (c *Checklist) Close() {
	c.once.Do(func() {
		close(c.stop)
	})
}

func (c *Checklist) spin() {
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			c.frame = (c.frame + 1) % len(spinFrames)
			if !c.paused {
				c.redraw()
			}
			c.mu.Unlock()
		}
	}
}

// redraw reprints all step lines in place. Caller must hold c.mu.
func (c *Checklist) redraw() {
	if len(c.steps) == 0 && c.renderedLines == 0 {
		return
	}
	if c.renderedLines > 0 {
		fmt.Fprintf(c.out, "\033[%dA", c.renderedLines)
	}
	for _, s := range c.steps {
		icon, label := c.stepStyle(s)
		line := fmt.Sprintf("  %s %s", icon, label)
		if s.Message != "" {
			line += " " + Muted(s.Message)
		}
		fmt.Fprintf(c.out, "\r%s\033[K\n", line)
	}
	for i := len(c.steps); i < c.renderedLines; i++ {
		fmt.Fprint(c.out, "\r\033[K\n")
	}
	c.renderedLines = max(len(c.steps), c.renderedLines)
}

func (c *Checklist) stepStyle(s stepState) (icon, label string) {
	switch s.Status {
	case stepRunning:
		return accentStyle.Render(spinFrames[c.frame]), s.Title
	case stepDone:
		if s.Warned {
			return warnStyle.Render("!"), s.Title
		}
		return okStyle.Render("✓"), s.Title
	case stepFailed:
		return failStyle.Render("✗"), failStyle.Render(s.Title)
	default:
		return Muted("●"), Muted(s.Title)
	}
}
