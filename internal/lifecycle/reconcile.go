package lifecycle

import (
	"context"
	"fmt"
)

// ReconcilePins removes every recursive pin other than root, in listing
// order. It stops at the first removal error and returns the pins removed
// before it.
func ReconcilePins(ctx context.Context, node Pinner, root string) ([]string, error) {
	pins, err := node.RecursivePins(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pins: %w", err)
	}

	var unpinned []string
	for _, pin := range pins {
		if pin == root {
			continue
		}
		if err := node.Unpin(ctx, pin); err != nil {
			return unpinned, fmt.Errorf("unpin %s: %w", pin, err)
		}
		unpinned = append(unpinned, pin)
	}
	return unpinned, nil
}
