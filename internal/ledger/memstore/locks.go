package memstore

import (
	"bytes"
	"context"
	"slices"
	"sync"

	"github.com/dmitrijs2005/wakevault/internal/escrow"
)

// keyLock is held by whoever managed to put a token into ch.
type keyLock struct {
	ch   chan struct{}
	refs int
}

// keyLocks hands out one exclusive lock per address. Entries are dropped
// once no caller holds or waits for them.
type keyLocks struct {
	mu sync.Mutex
	m  map[escrow.Address]*keyLock
}

func newKeyLocks() *keyLocks {
	return &keyLocks{m: make(map[escrow.Address]*keyLock)}
}

func (l *keyLocks) ref(k escrow.Address) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.m[k]
	if !ok {
		e = &keyLock{ch: make(chan struct{}, 1)}
		l.m[k] = e
	}
	e.refs++
	return e
}

func (l *keyLocks) unref(k escrow.Address, e *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.m, k)
	}
}

// sortedKeys returns keys deduplicated in ascending byte order. Acquiring in
// this order keeps overlapping requests from deadlocking.
func sortedKeys(keys []escrow.Address) []escrow.Address {
	out := slices.Clone(keys)
	slices.SortFunc(out, func(a, b escrow.Address) int {
		return bytes.Compare(a[:], b[:])
	})
	return slices.Compact(out)
}

// lock acquires every key or none. The returned func releases them.
func (l *keyLocks) lock(ctx context.Context, keys []escrow.Address) (func(), error) {
	type held struct {
		key escrow.Address
		e   *keyLock
	}
	var acquired []held
	unlock := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			h := acquired[i]
			<-h.e.ch
			l.unref(h.key, h.e)
		}
	}

	for _, k := range sortedKeys(keys) {
		e := l.ref(k)
		select {
		case e.ch <- struct{}{}:
			acquired = append(acquired, held{key: k, e: e})
		case <-ctx.Done():
			l.unref(k, e)
			unlock()
			return nil, ctx.Err()
		}
	}
	return unlock, nil
}
