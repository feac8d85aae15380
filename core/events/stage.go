package events

// Stage buffers events for one state transition. The node drains it into
// the long-lived feed only after the transition commits, so a reverted
// operation leaves no trace in the audit stream. Stage is not safe for
// concurrent use; callers serialize transitions.
type Stage struct {
	sink Emitter
	buf  []Event
}

// NewStage buffers ahead of sink. A nil sink drops flushed events.
func NewStage(sink Emitter) *Stage {
	return &Stage{sink: sink}
}

// Emit implements the Emitter interface.
func (s *Stage) Emit(evt Event) {
	if s == nil || evt == nil {
		return
	}
	s.buf = append(s.buf, evt)
}

// Flush forwards the buffered events to the sink in emission order and
// clears the buffer.
func (s *Stage) Flush() {
	if s == nil {
		return
	}
	if s.sink != nil {
		for _, evt := range s.buf {
			s.sink.Emit(evt)
		}
	}
	s.buf = s.buf[:0]
}

// Discard drops the buffered events without forwarding them.
func (s *Stage) Discard() {
	if s == nil {
		return
	}
	s.buf = s.buf[:0]
}

// Pending reports the number of buffered events.
func (s *Stage) Pending() int {
	if s == nil {
		return 0
	}
	return len(s.buf)
}
