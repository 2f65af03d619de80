package realtime

import "sync"

// State is the lifecycle position of one session.
type State uint8

const (
	StateConnected State = iota
	StateJoined
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	}
	return "invalid"
}

// transitions lists every legal (state, event) pair and its target state.
// Anything not listed is ignored by the router. Disconnected is terminal.
var transitions = map[State]map[string]State{
	StateConnected: {
		EventJoin:   StateJoined,
		eventClosed: StateDisconnected,
	},
	StateJoined: {
		EventTyping:      StateJoined,
		EventStopTyping:  StateJoined,
		EventSendMessage: StateJoined,
		EventLogout:      StateDisconnected,
		eventClosed:      StateDisconnected,
	},
}

// nextState looks up the transition for event in state cur.
func nextState(cur State, event string) (State, bool) {
	next, ok := transitions[cur][event]
	return next, ok
}

// Session is one connected client.
//
// The outbound queue is never closed; writers stop on Done instead, so a
// late enqueue can never panic. state and userID belong to the router's
// dispatch goroutine.
type Session struct {
	ID string
	// AuthUserID is the identity proven at upgrade time, "" when anonymous.
	AuthUserID string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	state  State
	userID string
}

// NewSession returns a session with a bounded outbound queue.
func NewSession(id, authUserID string, queue int) *Session {
	if queue <= 0 {
		queue = 64
	}
	return &Session{
		ID:         id,
		AuthUserID: authUserID,
		send:       make(chan []byte, queue),
		done:       make(chan struct{}),
	}
}

// Outbound yields frames to write to the transport.
func (s *Session) Outbound() <-chan []byte { return s.send }

// Done is closed when the session must shut down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close signals shutdown. It is idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// enqueue offers frame without blocking and reports whether it was queued.
func (s *Session) enqueue(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		return false
	}
}
