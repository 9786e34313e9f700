package utils

import (
	"hash/fnv"
	"sync"
)

const defaultStripes = 64

// StripedLock serializes work per key without one global mutex. Keys that hash
// to different stripes never wait on each other.
type StripedLock struct {
	stripes []sync.RWMutex
}

// NewStripedLock creates a lock with n stripes. n <= 0 uses the default.
func NewStripedLock(n int) *StripedLock {
	if n <= 0 {
		n = defaultStripes
	}
	return &StripedLock{stripes: make([]sync.RWMutex, n)}
}

func (l *StripedLock) stripe(key string) *sync.RWMutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &l.stripes[h.Sum32()%uint32(len(l.stripes))]
}

// Lock takes the key's stripe for writing and returns the matching unlock.
func (l *StripedLock) Lock(key string) func() {
	m := l.stripe(key)
	m.Lock()
	return m.Unlock
}

// RLock takes the key's stripe for reading and returns the matching unlock.
func (l *StripedLock) RLock(key string) func() {
	m := l.stripe(key)
	m.RLock()
	return m.RUnlock
}
