// Package fairlock provides a mutual-exclusion lock with strict
// first-come-first-served ordering among waiters.
//
// The standard [sync.Mutex] makes no fairness guarantee for already-blocked
// goroutines, which allows a burst of translate calls to overtake an earlier
// learn call on the same context and break the service's causal ordering
// contract. Mutex hands the lock to waiters in exactly the order their Lock
// calls started waiting.
package fairlock

import "sync"

// Mutex is a FIFO-fair mutual-exclusion lock. The zero value is an unlocked
// Mutex ready for use. A Mutex must not be copied after first use.
type Mutex struct {
	mu     sync.Mutex
	locked bool
	queue  []chan struct{}
}

// Lock acquires m, blocking until it is available. If goroutine A starts
// waiting before goroutine B, A acquires m before B.
func (m *Mutex) Lock() {
	m.mu.Lock()
	if !m.locked {
		m.locked = true
		m.mu.Unlock()
		return
	}
	wait := make(chan struct{})
	m.queue = append(m.queue, wait)
	m.mu.Unlock()
	<-wait
}

// TryLock acquires m without blocking and reports whether it succeeded.
// A TryLock never overtakes queued waiters: it fails while anyone holds or
// waits for the lock.
func (m *Mutex) TryLock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return false
	}
	m.locked = true
	return true
}

// Unlock releases m. Ownership passes directly to the head of the waiter
// queue, if any, so a releasing goroutine that immediately re-locks joins
// the back of the queue. Unlock of an unlocked Mutex panics.
func (m *Mutex) Unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.locked {
		panic("fairlock: Unlock of unlocked Mutex")
	}
	if len(m.queue) == 0 {
		m.locked = false
		return
	}
	next := m.queue[0]
	m.queue = m.queue[1:]
	// locked stays true: the lock is handed over, never released to a race.
	close(next)
}

// waiters reports the number of goroutines currently queued behind the
// holder. Test hook.
func (m *Mutex) waiters() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
