package lifecycle

import (
	"pinpost/internal/check"
	"pinpost/internal/telemetry"
)

// Phase is a node lifecycle state. Phases advance strictly in declaration
// order; DaemonStopped is terminal.
type Phase uint8

const (
	NotInstalled Phase = iota + 1
	Installed
	RepoReady
	Keyed
	DaemonRunning
	ContentStaged
	Added
	PinsReconciled
	Published
	AwaitingOperatorStop
	KeyExported
	DaemonStopped
)

var phaseInfo = map[Phase]struct {
	name  string
	step  string
	title string
}{
	NotInstalled:         {"not_installed", "", ""},
	Installed:            {"installed", "install", "Install node binary"},
	RepoReady:            {"repo_ready", "repo", "Prepare repository"},
	Keyed:                {"keyed", "key", "Load identity key"},
	DaemonRunning:        {"daemon_running", "daemon", "Start daemon"},
	ContentStaged:        {"content_staged", "stage", "Stage documents"},
	Added:                {"added", "add", "Add content"},
	PinsReconciled:       {"pins_reconciled", "pins", "Reconcile pins"},
	Published:            {"published", "publish", "Publish name"},
	AwaitingOperatorStop: {"awaiting_operator_stop", "await", "Serve until stopped"},
	KeyExported:          {"key_exported", "export", "Export identity key"},
	DaemonStopped:        {"daemon_stopped", "stop", "Stop daemon"},
}

func (p Phase) String() string {
	if info, ok := phaseInfo[p]; ok {
		return info.name
	}
	return "unknown"
}

// Step is the id of the step that enters p.
func (p Phase) Step() string {
	return phaseInfo[p].step
}

func (p Phase) IsValid() bool {
	return p >= NotInstalled && p <= DaemonStopped
}

func (p Phase) Terminal() bool {
	return p == DaemonStopped
}

func (p Phase) Transition(to Phase) Phase {
	ok := p.IsValid() && !p.Terminal() && to == p+1
	check.Assertf(ok, "lifecycle phase transition: %s -> %s", p, to)
	if !ok {
		return p
	}
	return to
}

// Plan lists every step of a run in order.
func Plan() telemetry.Plan {
	steps := make([]telemetry.PlannedStep, 0, int(DaemonStopped-NotInstalled))
	for p := Installed; p <= DaemonStopped; p++ {
		steps = append(steps, telemetry.PlannedStep{ID: p.Step(), Title: phaseInfo[p].title})
	}
	return telemetry.Plan{Steps: steps}
}
