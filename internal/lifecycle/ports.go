package lifecycle

import (
	"context"
	"time"

	"pinpost/internal/journal"
	"pinpost/internal/kubo"
	"pinpost/internal/stage"
)

type Provisioner interface {
	IsPresent() bool
	Install(ctx context.Context) error
}

// Pinner is the slice of the node surface used for pin reconciliation.
type Pinner interface {
	RecursivePins(ctx context.Context) ([]string, error)
	Unpin(ctx context.Context, root string) error
}

// Node is the node command surface, bound to one repository.
type Node interface {
	Pinner
	Initialized() bool
	Init(ctx context.Context) error
	SetEndpoints(ctx context.Context, gatewayAddr, apiAddr string) error
	ListKeys(ctx context.Context) ([]kubo.Key, error)
	ImportKey(ctx context.Context, name, path string) error
	GenerateKey(ctx context.Context, name, keyType string, size int) error
	ExportKey(ctx context.Context, name, path string) error
	Add(ctx context.Context, dir string) (string, error)
	Publish(ctx context.Context, key, path string) (string, error)
}

type Daemon interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Session supplies operator input.
type Session interface {
	Collect(ctx context.Context) (stage.Input, error)
	AwaitStop(ctx context.Context) error
}

type Stager interface {
	Stage(in stage.Input, now time.Time) (stage.Tree, error)
}

type Journal interface {
	Record(ctx context.Context, e journal.Entry) (journal.Entry, error)
}

// ServingNotifier is implemented by sessions that want to show what is
// being served before AwaitStop blocks.
type ServingNotifier interface {
	Serving(root, name string)
}
