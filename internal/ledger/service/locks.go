package service

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

// keyedMutex serializes ledger writes per customer. Mutating operations for
// one customer never interleave; different customers proceed in parallel.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[snowflake.ID]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[snowflake.ID]*entry{}}
}

func (k *keyedMutex) Lock(key snowflake.ID) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

func (k *keyedMutex) Unlock(key snowflake.ID) {
	k.mu.Lock()
	e := k.locks[key]
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	e.mu.Unlock()
}
