// Package lifecycle drives a node from absent to published and back to
// stopped, once per Run.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"pinpost/internal/journal"
	"pinpost/internal/telemetry"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// The identity key is fixed: one node, one identity.
const (
	KeyName = "profile"
	KeyType = "rsa"
	KeySize = 2048
)

const defaultStopTimeout = 10 * time.Second

// StepError is a fatal failure while entering Phase.
type StepError struct {
	Phase Phase
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase.Step(), e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Result summarizes a run. Warnings collects non-fatal failures.
type Result struct {
	Root     string
	Name     string
	Unpinned []string
	Warnings []string
	Phase    Phase
}

// Settings are the fixed paths and addresses a run works against.
type Settings struct {
	GatewayAddr   string
	APIAddr       string
	KeyExportPath string
	StopTimeout   time.Duration
}

// Deps are the collaborators a Controller sequences. Journal is optional.
type Deps struct {
	Provisioner Provisioner
	Node        Node
	Daemon      Daemon
	Session     Session
	Stager      Stager
	Journal     Journal
}

type Option func(*Controller)

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Controller) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

type Controller struct {
	settings Settings
	deps     Deps
	tracer   trace.Tracer
	now      func() time.Time
	log      *slog.Logger
}

func New(settings Settings, deps Deps, opts ...Option) *Controller {
	if settings.StopTimeout <= 0 {
		settings.StopTimeout = defaultStopTimeout
	}
	c := &Controller{
		settings: settings,
		deps:     deps,
		tracer:   noop.NewTracerProvider().Tracer("pinpost/lifecycle"),
		now:      time.Now,
		log:      slog.With("component", "lifecycle"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// run holds the state of one Run.
type run struct {
	c             *Controller
	phase         Phase
	daemonStarted bool
	root          string
	name          string
	stagedDir     string
	unpinned      []string
	warnings      []string
}

// Run executes the full lifecycle. A fatal step returns *StepError; if the
// daemon was already started it is stopped before returning, and a failure
// to stop is joined to the step error. Nothing else is rolled back.
func (c *Controller) Run(ctx context.Context) (res Result, err error) {
	op, err := telemetry.EmitPlan(ctx, c.tracer, "pinpost.run", Plan())
	if err != nil {
		return Result{}, err
	}
	defer func() { op.End(err) }()
	ctx = op.Context()

	r := &run{c: c, phase: NotInstalled}
	steps := []struct {
		to Phase
		fn func(context.Context) error
	}{
		{Installed, r.install},
		{RepoReady, r.prepareRepo},
		{Keyed, r.ensureKey},
		{DaemonRunning, r.startDaemon},
		{ContentStaged, r.stage},
		{Added, r.add},
		{PinsReconciled, r.reconcile},
		{Published, r.publish},
		{AwaitingOperatorStop, r.awaitStop},
		{KeyExported, r.exportKey},
		{DaemonStopped, r.stopDaemon},
	}

	for _, s := range steps {
		stepCtx := ctx
		if r.phase >= AwaitingOperatorStop {
			// Shutdown steps run even after the operator interrupts.
			stepCtx = context.WithoutCancel(ctx)
		}
		if err := op.RunStep(stepCtx, s.to.Step(), s.fn); err != nil {
			stepErr := &StepError{Phase: s.to, Err: err}
			if stopErr := r.abort(ctx); stopErr != nil {
				return r.result(), errors.Join(stepErr, stopErr)
			}
			return r.result(), stepErr
		}
		r.phase = r.phase.Transition(s.to)
	}

	c.log.Info("Run complete.", "root", r.root, "name", r.name)
	return r.result(), nil
}

func (r *run) result() Result {
	return Result{
		Root:     r.root,
		Name:     r.name,
		Unpinned: r.unpinned,
		Warnings: r.warnings,
		Phase:    r.phase,
	}
}

func (r *run) warn(ctx context.Context, msg string) {
	r.warnings = append(r.warnings, msg)
	r.c.log.Warn(msg)
	telemetry.Warn(ctx, msg)
}

func (r *run) install(ctx context.Context) error {
	if r.c.deps.Provisioner.IsPresent() {
		r.c.log.Debug("Node binary present.")
		return nil
	}
	return r.c.deps.Provisioner.Install(ctx)
}

func (r *run) prepareRepo(ctx context.Context) error {
	node := r.c.deps.Node
	if !node.Initialized() {
		if err := node.Init(ctx); err != nil {
			return err
		}
		r.c.log.Info("Repository initialized.")
	}
	return node.SetEndpoints(ctx, r.c.settings.GatewayAddr, r.c.settings.APIAddr)
}

func (r *run) ensureKey(ctx context.Context) error {
	node := r.c.deps.Node
	keys, err := node.ListKeys(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k.Name == KeyName {
			r.c.log.Debug("Identity key present.", "id", k.ID)
			return nil
		}
	}

	exportPath := r.c.settings.KeyExportPath
	info, err := os.Stat(exportPath)
	switch {
	case err == nil && info.Mode().IsRegular():
		if err := node.ImportKey(ctx, KeyName, exportPath); err != nil {
			return err
		}
		r.c.log.Info("Identity key imported.", "path", exportPath)
		return nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("check key export: %w", err)
	}

	if err := node.GenerateKey(ctx, KeyName, KeyType, KeySize); err != nil {
		return err
	}
	msg := fmt.Sprintf("no key export at %s, generated a new identity", exportPath)
	r.c.log.Warn(msg)
	telemetry.Warn(ctx, msg)
	return nil
}

func (r *run) startDaemon(ctx context.Context) error {
	if err := r.c.deps.Daemon.Start(ctx); err != nil {
		return err
	}
	r.daemonStarted = true
	return nil
}

func (r *run) stage(ctx context.Context) error {
	in, err := r.c.deps.Session.Collect(ctx)
	if err != nil {
		return err
	}
	tree, err := r.c.deps.Stager.Stage(in, r.c.now())
	if err != nil {
		return err
	}
	r.stagedDir = tree.Dir
	return nil
}

func (r *run) add(ctx context.Context) error {
	root, err := r.c.deps.Node.Add(ctx, r.stagedDir)
	if err != nil {
		return err
	}
	r.root = root
	return nil
}

func (r *run) reconcile(ctx context.Context) error {
	unpinned, err := ReconcilePins(ctx, r.c.deps.Node, r.root)
	r.unpinned = unpinned
	if err != nil {
		r.warn(ctx, err.Error())
	}
	return nil
}

func (r *run) publish(ctx context.Context) error {
	name, err := r.c.deps.Node.Publish(ctx, KeyName, "/ipfs/"+r.root)
	if err != nil {
		return err
	}
	r.name = name
	r.c.log.Info("Name published.", "name", name, "root", r.root)

	if r.c.deps.Journal == nil {
		return nil
	}
	_, err = r.c.deps.Journal.Record(ctx, journal.Entry{
		Root:     r.root,
		Name:     name,
		Unpinned: r.unpinned,
		Warnings: r.warnings,
	})
	if err != nil {
		r.warn(ctx, fmt.Sprintf("record publish: %v", err))
	}
	return nil
}

// awaitStop treats an interrupt as the operator's stop request.
func (r *run) awaitStop(ctx context.Context) error {
	if n, ok := r.c.deps.Session.(ServingNotifier); ok {
		n.Serving(r.root, r.name)
	}
	err := r.c.deps.Session.AwaitStop(ctx)
	if err != nil && ctx.Err() != nil {
		r.c.log.Info("Interrupted, shutting down.")
		return nil
	}
	return err
}

func (r *run) exportKey(ctx context.Context) error {
	if err := r.c.deps.Node.ExportKey(ctx, KeyName, r.c.settings.KeyExportPath); err != nil {
		r.warn(ctx, fmt.Sprintf("export key: %v", err))
	}
	return nil
}

func (r *run) stopDaemon(ctx context.Context) error {
	stopCtx, cancel := context.WithTimeout(ctx, r.c.settings.StopTimeout)
	defer cancel()
	r.daemonStarted = false
	return r.c.deps.Daemon.Stop(stopCtx)
}

// abort stops a started daemon after a fatal step.
func (r *run) abort(ctx context.Context) error {
	if !r.daemonStarted {
		return nil
	}
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.c.settings.StopTimeout)
	defer cancel()
	if err := r.c.deps.Daemon.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop daemon: %w", err)
	}
	r.daemonStarted = false
	return nil
}
