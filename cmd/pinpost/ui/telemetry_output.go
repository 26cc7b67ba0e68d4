package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"pinpost/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TelemetryOutput renders lifecycle spans on stderr: a live checklist on a
// terminal, one line per state change otherwise.
type TelemetryOutput struct {
	provider  *sdktrace.TracerProvider
	checklist *Checklist
	closeFn   func()
}

// NewTelemetryOutput builds the tracer provider for a command. A non-empty
// otlpEndpoint also exports spans to a collector.
func NewTelemetryOutput(ctx context.Context, otlpEndpoint string) (*TelemetryOutput, error) {
	out := &TelemetryOutput{closeFn: func() {}}

	var observer *stepObserver
	if IsInteractive() {
		out.checklist = NewChecklist()
		out.closeFn = out.checklist.Close
		observer = newStepObserver(out.checklist.OnSnapshot)
	} else {
		observer = newStepObserver(newLineTelemetry(os.Stderr).OnSnapshot)
	}

	provider, err := telemetry.NewProvider(ctx, otlpEndpoint, &stepSpanProcessor{observer: observer})
	if err != nil {
		return nil, err
	}
	out.provider = provider
	return out, nil
}

func (o *TelemetryOutput) Tracer(name string) trace.Tracer {
	return o.provider.Tracer(name)
}

// Suspend pauses checklist redraws while fn owns the terminal.
func (o *TelemetryOutput) Suspend(fn func() error) error {
	if o == nil || o.checklist == nil {
		return fn()
	}
	o.checklist.Pause()
	defer o.checklist.Resume()
	return fn()
}

func (o *TelemetryOutput) Close() {
	if o == nil {
		return
	}
	if o.provider != nil {
		_ = o.provider.Shutdown(context.Background())
	}
	if o.closeFn != nil {
		o.closeFn()
	}
}

type lineTelemetry struct {
	out      io.Writer
	mu       sync.Mutex
	status   map[string]stepStatus
	messages map[string]string
}

func newLineTelemetry(out io.Writer) *lineTelemetry {
	return &lineTelemetry{
		out:      out,
		status:   make(map[string]stepStatus),
		messages: make(map[string]string),
	}
}

func (l *lineTelemetry) OnSnapshot(snapshot stepSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, step := range snapshot.Steps {
		if step.Status == stepPending {
			continue
		}

		msg := strings.TrimSpace(step.Message)
		prevStatus, hasStatus := l.status[step.ID]
		if hasStatus && prevStatus == step.Status && l.messages[step.ID] == msg {
			continue
		}

		l.status[step.ID] = step.Status
		l.messages[step.ID] = msg
		fmt.Fprintln(l.out, formatStepLine(step, msg))
	}
}

func formatStepLine(step stepState, msg string) string {
	prefix := "[..]"
	switch step.Status {
	case stepRunning:
		prefix = "[->]"
	case stepDone:
		prefix = "[ok]"
		if step.Warned {
			prefix = "[!!]"
		}
	case stepFailed:
		prefix = "[x]"
	}

	title := strings.TrimSpace(step.Title)
	if title == "" {
		title = step.ID
	}
	if msg != "" {
		return fmt.Sprintf("  %s %s (%s)", prefix, title, msg)
	}
	return fmt.Sprintf("  %s %s", prefix, title)
}

// stepObserver folds span events into ordered step snapshots.
type stepObserver struct {
	mu       sync.Mutex
	steps    map[string]stepState
	order    []string
	reporter func(stepSnapshot)
}

func newStepObserver(reporter func(stepSnapshot)) *stepObserver {
	return &stepObserver{
		steps:    make(map[string]stepState),
		order:    make([]string, 0, 12),
		reporter: reporter,
	}
}

func (o *stepObserver) onPlan(plan telemetry.Plan) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, planned := range plan.Steps {
		stepID := strings.TrimSpace(planned.ID)
		if stepID == "" {
			continue
		}
		step, exists := o.steps[stepID]
		if !exists {
			o.order = append(o.order, stepID)
			step = stepState{ID: stepID, Status: stepPending}
		}
		step.Title = strings.TrimSpace(planned.Title)
		if step.Title == "" {
			step.Title = stepID
		}
		o.steps[stepID] = step
	}
	o.emitLocked()
}

func (o *stepObserver) onStepStart(stepID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	step := o.ensureStepLocked(stepID)
	step.Status = stepRunning
	step.Message = ""
	step.Warned = false
	o.steps[step.ID] = step
	o.emitLocked()
}

func (o *stepObserver) onStepEnd(stepID string, failed bool, message string, warnings []string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	step := o.ensureStepLocked(stepID)
	switch {
	case failed:
		step.Status = stepFailed
		step.Message = strings.TrimSpace(message)
	case len(warnings) > 0:
		step.Status = stepDone
		step.Warned = true
		step.Message = strings.Join(warnings, "; ")
	default:
		step.Status = stepDone
		step.Message = ""
	}
	o.steps[step.ID] = step
	o.emitLocked()
}

func (o *stepObserver) ensureStepLocked(stepID string) stepState {
	stepID = strings.TrimSpace(stepID)
	if stepID == "" {
		stepID = "unnamed"
	}
	if step, exists := o.steps[stepID]; exists {
		return step
	}
	o.order = append(o.order, stepID)
	return stepState{ID: stepID, Title: stepID, Status: stepPending}
}

func (o *stepObserver) emitLocked() {
	if o.reporter == nil {
		return
	}
	steps := make([]stepState, 0, len(o.order))
	for _, stepID := range o.order {
		if step, exists := o.steps[stepID]; exists {
			steps = append(steps, step)
		}
	}
	o.reporter(stepSnapshot{Steps: steps})
}

// stepSpanProcessor treats root spans as plans and child spans as steps.
type stepSpanProcessor struct {
	observer *stepObserver
}

func (p *stepSpanProcessor) OnStart(_ context.Context, span sdktrace.ReadWriteSpan) {
	if p == nil || p.observer == nil {
		return
	}

	if span.Parent().IsValid() {
		p.observer.onStepStart(span.Name())
		return
	}

	planJSON := attributeValue(span.Attributes(), telemetry.PlanJSONKey)
	if strings.TrimSpace(planJSON) == "" {
		return
	}

	var plan telemetry.Plan
	if err := json.Unmarshal([]byte(planJSON), &plan); err != nil {
		return
	}
	p.observer.onPlan(plan)
}

func (p *stepSpanProcessor) OnEnd(span sdktrace.ReadOnlySpan) {
	if p == nil || p.observer == nil {
		return
	}
	if !span.Parent().IsValid() {
		return
	}

	var warnings []string
	for _, ev := range span.Events() {
		if ev.Name == telemetry.WarningEventName {
			warnings = append(warnings, attributeValue(ev.Attributes, telemetry.WarningMessageKey))
		}
	}

	status := span.Status()
	p.observer.onStepEnd(span.Name(), status.Code == codes.Error, status.Description, warnings)
}

func (p *stepSpanProcessor) Shutdown(context.Context) error {
	return nil
}

func (p *stepSpanProcessor) ForceFlush(context.Context) error {
	return nil
}

func attributeValue(attrs []attribute.KeyValue, key string) string {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.AsString()
		}
	}
	return ""
}
