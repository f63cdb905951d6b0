// Package cache memoizes the fault-injected-lookup endpoints
// (/filibuster/fault-injected/service/{name} and
// /filibuster/fault-injected/method/{method}), which otherwise rescan
// every completed execution's response log on every request.
package cache

import (
	"errors"
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"
)

// ErrClosed is returned by Lookup/Store once the cache has been closed.
var ErrClosed = errors.New("cache: closed")

// BoolMemo is a small ristretto-backed memoization cache for boolean
// lookups keyed by string. It is invalidated wholesale (Clear) whenever a
// new completed execution is appended, since any cached "false" could turn
// into "true" once more data is observed.
type BoolMemo struct {
	cache  *ristretto.Cache[string, bool]
	closed atomic.Bool
}

// NewBoolMemo builds a memoization cache sized for a modest number of
// distinct (kind, name) lookup keys; the values themselves are single
// bytes, so cost tracking is unnecessary.
func NewBoolMemo() (*BoolMemo, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, bool]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &BoolMemo{cache: c}, nil
}

// Lookup returns the memoized value for key, if present.
func (m *BoolMemo) Lookup(key string) (value bool, found bool) {
	if m.closed.Load() {
		return false, false
	}
	return m.cache.Get(key)
}

// Store memoizes value for key.
func (m *BoolMemo) Store(key string, value bool) {
	if m.closed.Load() {
		return
	}
	m.cache.Set(key, value, 1)
}

// Wait blocks until all pending writes have been applied. Ristretto
// applies Set/Clear asynchronously through an internal buffer; tests and
// callers that need a just-stored value to be immediately visible should
// call Wait first.
func (m *BoolMemo) Wait() {
	if m.closed.Load() {
		return
	}
	m.cache.Wait()
}

// Clear invalidates every memoized entry. Called whenever the orchestrator
// appends a newly completed execution, since that can change the answer to
// a previously memoized lookup.
func (m *BoolMemo) Clear() {
	if m.closed.Load() {
		return
	}
	m.cache.Clear()
}

// Close releases the underlying cache. Close is idempotent.
func (m *BoolMemo) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.cache.Close()
	return nil
}
