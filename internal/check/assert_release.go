//go:build !debug

// Package check holds invariant assertions that only fire in debug builds
// (go build -tags debug). Release builds compile them to no-ops.
package check

func Assert(bool, string) {}

func Assertf(bool, string, ...any) {}
