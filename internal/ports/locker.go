package ports

import "context"

// SymbolLocker serialises workflow runs per symbol.
type SymbolLocker interface {
	// Lock blocks until the symbol is free or ctx is done. The returned func releases the lock.
	Lock(ctx context.Context, symbol string) (unlock func(), err error)
}

// NopLocker never blocks. Concurrent runs on one symbol may race.
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }
