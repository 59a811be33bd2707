// Package bg runs fire-and-forget work such as sends and mark-read calls.
//
// Production code uses Async; tests use Sync so completions are applied before
// the call returns.
package bg

type Runner interface {
	Do(fn func())
}

// Async runs each function in its own goroutine.
type Async struct{}

func (Async) Do(fn func()) {
	go fn()
}

// Sync runs each function inline.
type Sync struct{}

func (Sync) Do(fn func()) {
	fn()
}
