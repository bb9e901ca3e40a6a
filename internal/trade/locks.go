package trade

import "sync"

// keyedMutex serializes work per key: trades on the same instrument (or
// the same actor) contend, everything else proceeds in parallel. Locks
// are created on demand and never discarded — the key space (instruments,
// actors) is small and long-lived.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) Lock(key string) {
	k.get(key).Lock()
}

func (k *keyedMutex) Unlock(key string) {
	k.get(key).Unlock()
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}
