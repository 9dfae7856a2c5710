package room

import "sync"

// lockArena hands out one mutex per room id and frees it when the last holder
// releases it, so idle rooms cost nothing.
type lockArena struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func newLockArena() *lockArena {
	return &lockArena{locks: make(map[string]*refLock)}
}

// lock blocks until key is held and returns the release func.
func (a *lockArena) lock(key string) func() {
	a.mu.Lock()
	l, ok := a.locks[key]
	if !ok {
		l = &refLock{}
		a.locks[key] = l
	}
	l.refs++
	a.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		a.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(a.locks, key)
		}
		a.mu.Unlock()
	}
}

func (a *lockArena) size() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.locks)
}
