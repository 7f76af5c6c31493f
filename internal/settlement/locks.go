package settlement

import "sync"

// PayableLocks serializes transfer attempts per payable. The lock is held
// only across transfer creation and the write immediately after — never
// across the wait for the webhook, which is asynchronous by design.
//
// Acquisition is non-blocking: a second attempt while one is in flight is a
// business error (ErrPayableInFlight at the service layer), not something to
// queue behind.
type PayableLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewPayableLocks creates an empty lock registry.
func NewPayableLocks() *PayableLocks {
	return &PayableLocks{held: make(map[string]struct{})}
}

// TryAcquire takes the lock for a payable id. Returns false if another
// attempt already holds it. The caller must invoke the release function
// exactly once when done.
func (l *PayableLocks) TryAcquire(payableID string) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.held[payableID]; taken {
		return nil, false
	}
	l.held[payableID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, payableID)
			l.mu.Unlock()
		})
	}, true
}
