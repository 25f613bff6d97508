// Package store provides in-memory finance.BlobStore and finance.ActivityLog
// implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/bensave/wallet/finance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	blobs       map[string][]byte
	entries     []finance.Entry
	idempotency map[string]bool
}

var (
	_ finance.BlobStore   = (*Memory)(nil)
	_ finance.ActivityLog = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		blobs:       make(map[string][]byte),
		idempotency: make(map[string]bool),
	}
}

// Get returns a copy of the stored value.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.blobs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Put overwrites the value for key.
func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = append([]byte(nil), value...)
	return nil
}

// Append adds an entry, keeping entries ordered by time. Append-only.
func (m *Memory) Append(_ context.Context, e finance.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.IdempotencyKey != "" {
		if m.idempotency[e.IdempotencyKey] {
			return finance.ErrDuplicateIdempotencyKey
		}
		m.idempotency[e.IdempotencyKey] = true
	}

	// Binary search for insertion point; equal times keep arrival order
	i := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].At.After(e.At)
	})
	m.entries = append(m.entries, finance.Entry{})
	copy(m.entries[i+1:], m.entries[i:])
	m.entries[i] = e
	return nil
}

// Recent returns up to limit entries, newest first. limit <= 0 means all.
func (m *Memory) Recent(_ context.Context, limit int) ([]finance.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]finance.Entry, 0, n)
	for i := len(m.entries) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, m.entries[i])
	}
	return result, nil
}

// ClearActivity drops every entry and forgets idempotency keys. Blobs stay.
func (m *Memory) ClearActivity(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.idempotency = make(map[string]bool)
	return nil
}
