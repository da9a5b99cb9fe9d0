// Package resolve implements a latest-wins asynchronous lookup: a live-search
// field issues a lookup per query change, and only the result of the most
// recently issued query may reach the visible option list. Stale responses
// are dropped, never merged.
package resolve

import (
	"context"
	"sync/atomic"
)

// Func performs one lookup of a free-text query.
type Func[T any] func(ctx context.Context, query string) ([]T, error)

// Result carries the outcome of one lookup, tagged with the sequence number
// of the query that produced it.
type Result[T any] struct {
	Seq     uint64
	Query   string
	Options []T
	Err     error
}

// Resolver issues lookups tagged with a monotonically increasing sequence
// number. It never cancels an in-flight lookup; superseding is emulated by
// discarding stale results at application time.
type Resolver[T any] struct {
	fn      Func[T]
	seq     atomic.Uint64
	results chan Result[T]
}

func New[T any](fn Func[T]) *Resolver[T] {
	return &Resolver[T]{fn: fn, results: make(chan Result[T], 16)}
}

// Lookup starts resolving query and returns its sequence number. Safe to call
// again before earlier lookups return; those results become stale.
func (r *Resolver[T]) Lookup(ctx context.Context, query string) uint64 {
	seq := r.seq.Add(1)
	go func() {
		options, err := r.fn(ctx, query)
		if err != nil {
			options = nil
		}
		select {
		case r.results <- Result[T]{Seq: seq, Query: query, Options: options, Err: err}:
		case <-ctx.Done():
		}
	}()
	return seq
}

// Results delivers lookup outcomes, stale ones included; gate with Stale.
func (r *Resolver[T]) Results() <-chan Result[T] { return r.results }

// Stale reports whether a newer query was issued after the one that produced
// this result.
func (r *Resolver[T]) Stale(res Result[T]) bool { return res.Seq != r.seq.Load() }

// View tracks the search session state for one dependent-field widget: the
// current query, the last applied option list, and whether a lookup is
// outstanding. Each new query supersedes, never merges with, the previous.
type View[T any] struct {
	resolver *Resolver[T]

	Query   string
	Options []T
	Err     error
	pending uint64
}

func NewView[T any](fn Func[T]) *View[T] {
	return &View[T]{resolver: New(fn)}
}

// Search issues a lookup for query. Previous options remain visible (and
// selectable) until a fresh result supersedes them.
func (v *View[T]) Search(ctx context.Context, query string) {
	v.Query = query
	v.pending = v.resolver.Lookup(ctx, query)
}

// Apply installs a result unless it is stale, and reports whether the visible
// state changed. A failed resolution installs an empty option list plus the
// error; a successful empty resolution installs an empty list with no error.
func (v *View[T]) Apply(res Result[T]) bool {
	if v.resolver.Stale(res) {
		return false
	}
	v.Options = res.Options
	v.Err = res.Err
	v.pending = 0
	return true
}

// Loading reports whether the most recent lookup has not been applied yet.
func (v *View[T]) Loading() bool { return v.pending != 0 }

// Results exposes the underlying result channel for event-loop integration.
func (v *View[T]) Results() <-chan Result[T] { return v.resolver.Results() }
