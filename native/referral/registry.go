package referral

import (
	"encoding/hex"
	"errors"

	"curio/core/events"
	"curio/core/types"
	nativecommon "curio/native/common"
)

const (
	moduleName = "referral"

	// maxBindWalk bounds the cycle check so a corrupted graph cannot stall a
	// bind. The splitter is independently bounded by its level table.
	maxBindWalk = 64
)

var (
	errNilState        = errors.New("referral: state not configured")
	ErrInvalidReferrer = errors.New("referral: invalid referrer")
	ErrSelfReferral    = errors.New("referral: self referral")
	ErrAlreadyBound    = errors.New("referral: referrer already bound")
	ErrCycle           = errors.New("referral: binding would create a cycle")
)

// EventTypeBound reports a new referral binding.
const EventTypeBound = "referral.bound"

type registryState interface {
	ReferrerGet(addr [20]byte) ([20]byte, bool, error)
	ReferrerPut(addr, referrer [20]byte) error
}

// Registry stores the referral graph: one referrer per account, bound once.
type Registry struct {
	state   registryState
	emitter events.Emitter
	pauses  nativecommon.PauseView
}

// NewRegistry constructs an empty referral registry.
func NewRegistry() *Registry {
	return &Registry{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend.
func (r *Registry) SetState(state registryState) { r.state = state }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetPauses configures the pause view gating mutating entry points.
func (r *Registry) SetPauses(p nativecommon.PauseView) { r.pauses = p }

// Bind records referrer as the caller's referrer. A binding is permanent; a
// second bind fails. Bindings that would close a cycle over the existing
// graph, including the two-party A↔B case, are rejected at bind time.
func (r *Registry) Bind(caller, referrer [20]byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(r.pauses, moduleName); err != nil {
		return err
	}
	if referrer == ([20]byte{}) {
		return ErrInvalidReferrer
	}
	if referrer == caller {
		return ErrSelfReferral
	}
	if _, bound, err := r.state.ReferrerGet(caller); err != nil {
		return err
	} else if bound {
		return ErrAlreadyBound
	}
	cursor := referrer
	for i := 0; i < maxBindWalk; i++ {
		if cursor == caller {
			return ErrCycle
		}
		next, ok, err := r.state.ReferrerGet(cursor)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		cursor = next
	}
	if err := r.state.ReferrerPut(caller, referrer); err != nil {
		return err
	}
	r.emitter.Emit(referralEvent{evt: &types.Event{Type: EventTypeBound, Attributes: map[string]string{
		"account":  hex.EncodeToString(caller[:]),
		"referrer": hex.EncodeToString(referrer[:]),
	}}})
	return nil
}

// ReferrerOf implements the splitter's ReferralLookup interface.
func (r *Registry) ReferrerOf(addr [20]byte) ([20]byte, bool, error) {
	if r == nil || r.state == nil {
		return [20]byte{}, false, errNilState
	}
	return r.state.ReferrerGet(addr)
}

type referralEvent struct {
	evt *types.Event
}

func (e referralEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e referralEvent) Event() *types.Event { return e.evt }
