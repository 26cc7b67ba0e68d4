package lifecycle

import "testing"

func TestPhaseTransitionAdvancesInOrder(t *testing.T) {
	p := NotInstalled
	for next := Installed; next <= DaemonStopped; next++ {
		p = p.Transition(next)
		if p != next {
			t.Fatalf("Transition(%s) = %s", next, p)
		}
	}
	if !p.Terminal() {
		t.Fatalf("%s should be terminal", p)
	}
}

func TestPhaseStrings(t *testing.T) {
	cases := map[Phase]string{
		NotInstalled:         "not_installed",
		PinsReconciled:       "pins_reconciled",
		AwaitingOperatorStop: "awaiting_operator_stop",
		DaemonStopped:        "daemon_stopped",
		Phase(0):             "unknown",
	}
	for p, want := range cases {
		if got := p.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", p, got, want)
		}
	}
}

func TestPlanCoversEveryStep(t *testing.T) {
	plan := Plan()
	if len(plan.Steps) != int(DaemonStopped-NotInstalled) {
		t.Fatalf("plan has %d steps", len(plan.Steps))
	}
	if plan.Steps[0].ID != "install" || plan.Steps[len(plan.Steps)-1].ID != "stop" {
		t.Fatalf("plan = %+v", plan.Steps)
	}
	for _, s := range plan.Steps {
		if s.Title == "" {
			t.Errorf("step %q has no title", s.ID)
		}
	}
}
