// Package lock serialises workflow runs per symbol.
package lock

import (
	"context"
	"sync"

	"futuresHook/internal/ports"
)

// Compile-time check that MemoryLocker implements ports.SymbolLocker
var _ ports.SymbolLocker = (*MemoryLocker)(nil)

type memoryEntry struct {
	token chan struct{}
	refs  int
}

// MemoryLocker is an in-process keyed mutex. It only protects a single replica.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

// NewMemoryLocker creates an empty keyed mutex.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: make(map[string]*memoryEntry)}
}

// Lock blocks until symbol is free or ctx is done.
func (l *MemoryLocker) Lock(ctx context.Context, symbol string) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[symbol]
	if !ok {
		e = &memoryEntry{token: make(chan struct{}, 1)}
		l.entries[symbol] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.token <- struct{}{}:
	case <-ctx.Done():
		l.release(symbol, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.token
			l.release(symbol, e)
		})
	}, nil
}

// release drops one reference and forgets the entry once nobody holds or waits on it.
func (l *MemoryLocker) release(symbol string, e *memoryEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, symbol)
	}
}

// size reports how many symbols are tracked.
func (l *MemoryLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
