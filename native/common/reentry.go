package common

import "errors"

var ErrReentrantCall = errors.New("reentrant call rejected")

// ReentryGuard rejects nested invocations of state-mutating entry points. The
// host serializes operations across callers, so the only way a second entry
// can begin while one is in flight is a callback from an external gateway
// during a transfer. Such nested calls must fail immediately rather than
// observe partially-updated state.
type ReentryGuard struct {
	busy bool
}

// Enter marks the guard as held. It fails if the guard is already held by the
// enclosing operation.
func (g *ReentryGuard) Enter() error {
	if g == nil {
		return nil
	}
	if g.busy {
		return ErrReentrantCall
	}
	g.busy = true
	return nil
}

// Exit releases the guard. Callers pair it with Enter via defer.
func (g *ReentryGuard) Exit() {
	if g == nil {
		return
	}
	g.busy = false
}
