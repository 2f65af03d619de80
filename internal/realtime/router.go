package realtime

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrRouterStopped is returned by submissions after Run has returned.
var ErrRouterStopped = errors.New("realtime: router stopped")

type cmdKind uint8

const (
	cmdConnect cmdKind = iota
	cmdEvent
	cmdDeliver
	cmdSync
)

type command struct {
	kind    cmdKind
	session *Session
	event   Envelope
	userID  string
	frames  [][]byte
	done    chan struct{}
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// QueueSize bounds the dispatch queue. Values <= 0 default to 1024.
	QueueSize int
	// Mirrors observe every online-set change.
	Mirrors []PresenceMirror
	// Logger defaults to the global logger tagged component=realtime.
	Logger *zerolog.Logger
}

// Router runs the per-session state machine. All registry access, routing
// and presence broadcasting happens on the single goroutine running Run, so
// events are handled one at a time in submission order.
type Router struct {
	cmds     chan command
	stopped  chan struct{}
	registry *Registry
	presence *Broadcaster
	log      zerolog.Logger

	// owned by Run
	sessions map[string]*Session
}

// NewRouter returns a router over reg. Call Run to start dispatching.
func NewRouter(reg *Registry, opts RouterOptions) *Router {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	lg := log.With().Str("component", "realtime").Logger()
	if opts.Logger != nil {
		lg = *opts.Logger
	}
	r := &Router{
		cmds:     make(chan command, opts.QueueSize),
		stopped:  make(chan struct{}),
		registry: reg,
		presence: NewBroadcaster(lg, opts.Mirrors...),
		log:      lg,
		sessions: make(map[string]*Session),
	}
	reg.OnChange(r.broadcastPresence)
	return r
}

// Run dispatches commands until ctx ends, then closes every session.
func (r *Router) Run(ctx context.Context) {
	defer close(r.stopped)
	for {
		select {
		case <-ctx.Done():
			for _, s := range r.sessions {
				s.Close()
			}
			openSessions.Sub(float64(len(r.sessions)))
			r.sessions = map[string]*Session{}
			return
		case c := <-r.cmds:
			r.dispatch(c)
		}
	}
}

// Connect registers a new session in state Connected.
func (r *Router) Connect(ctx context.Context, s *Session) error {
	return r.submit(ctx, command{kind: cmdConnect, session: s})
}

// Submit hands an inbound event to the router. It blocks while the dispatch
// queue is full, which pushes back on the reading connection.
func (r *Router) Submit(ctx context.Context, s *Session, env Envelope) error {
	return r.submit(ctx, command{kind: cmdEvent, session: s, event: env})
}

// Disconnect reports that the transport of s closed.
func (r *Router) Disconnect(ctx context.Context, s *Session) error {
	return r.submit(ctx, command{kind: cmdEvent, session: s, event: Envelope{Type: eventClosed}})
}

// Notify queues frames for userID's current session without blocking. It
// reports false when the dispatch queue is full or the router stopped; the
// notification is then lost.
func (r *Router) Notify(userID string, frames ...[]byte) bool {
	if userID == "" || len(frames) == 0 {
		return false
	}
	select {
	case <-r.stopped:
		return false
	default:
	}
	select {
	case r.cmds <- command{kind: cmdDeliver, userID: userID, frames: frames}:
		return true
	default:
		notifyDropped.Inc()
		r.log.Warn().Str("user_id", userID).Msg("dispatch queue full, notification dropped")
		return false
	}
}

// Sync returns once every command submitted before it has been handled.
func (r *Router) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if err := r.submit(ctx, command{kind: cmdSync, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stopped:
		return ErrRouterStopped
	}
}

func (r *Router) submit(ctx context.Context, c command) error {
	select {
	case <-r.stopped:
		return ErrRouterStopped
	default:
	}
	select {
	case r.cmds <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stopped:
		return ErrRouterStopped
	}
}

func (r *Router) dispatch(c command) {
	switch c.kind {
	case cmdConnect:
		r.sessions[c.session.ID] = c.session
		c.session.state = StateConnected
		openSessions.Inc()
	case cmdEvent:
		r.handleEvent(c.session, c.event)
	case cmdDeliver:
		for _, f := range c.frames {
			r.deliver(c.userID, f)
		}
	case cmdSync:
		close(c.done)
	}
}

func (r *Router) handleEvent(s *Session, env Envelope) {
	if _, ok := r.sessions[s.ID]; !ok {
		// Never connected, or already gone.
		s.Close()
		return
	}
	label := eventLabel(env.Type)
	next, ok := nextState(s.state, env.Type)
	if !ok {
		if env.Type == eventClosed {
			// Closing after logout: the session is already Disconnected.
			r.drop(s)
			return
		}
		eventsTotal.WithLabelValues(label, outcomeIgnored).Inc()
		r.log.Debug().
			Str("session_id", s.ID).
			Str("state", s.state.String()).
			Str("event", env.Type).
			Msg("event not allowed in state")
		return
	}

	switch env.Type {
	case EventJoin:
		uid := parseJoin(env.Data)
		if uid == "" {
			eventsTotal.WithLabelValues(label, outcomeIgnored).Inc()
			return
		}
		if s.AuthUserID != "" && uid != s.AuthUserID {
			eventsTotal.WithLabelValues(label, outcomeRejected).Inc()
			r.log.Warn().
				Str("session_id", s.ID).
				Str("auth_user_id", s.AuthUserID).
				Str("join_user_id", uid).
				Msg("join identity mismatch")
			return
		}
		s.userID = uid
		s.state = next
		r.registry.Bind(uid, s.ID)

	case EventTyping, EventStopTyping:
		to := parseTarget(env.Data)
		if to == "" {
			eventsTotal.WithLabelValues(label, outcomeIgnored).Inc()
			return
		}
		r.deliver(to, mustFrame(env.Type, TypingPayload{To: to, From: s.userID}))

	case EventSendMessage:
		p, ok := parseSendMessage(env.Data)
		if !ok {
			eventsTotal.WithLabelValues(label, outcomeIgnored).Inc()
			return
		}
		r.deliver(p.ReceiverID, mustFrame(EventReceiveMessage, p.Message))

	case EventLogout:
		s.state = next
		r.registry.UnbindSession(s.userID, s.ID)
		s.Close()

	case eventClosed:
		if s.state == StateJoined {
			r.registry.UnbindSession(s.userID, s.ID)
		}
		s.state = next
		r.drop(s)
	}
	eventsTotal.WithLabelValues(label, outcomeHandled).Inc()
}

// drop forgets a closed session.
func (r *Router) drop(s *Session) {
	s.state = StateDisconnected
	if _, ok := r.sessions[s.ID]; ok {
		delete(r.sessions, s.ID)
		openSessions.Dec()
	}
	s.Close()
}

// deliver is one lookup followed by one non-blocking send. Nothing is queued
// for later and nothing is retried.
func (r *Router) deliver(userID string, frame []byte) {
	sid, ok := r.registry.Lookup(userID)
	if !ok {
		deliveriesTotal.WithLabelValues(deliveryOffline).Inc()
		return
	}
	s, ok := r.sessions[sid]
	if !ok || !s.enqueue(frame) {
		deliveriesTotal.WithLabelValues(deliveryBackpressure).Inc()
		r.log.Debug().Str("user_id", userID).Str("session_id", sid).Msg("delivery dropped")
		return
	}
	deliveriesTotal.WithLabelValues(deliveryDelivered).Inc()
}

func (r *Router) broadcastPresence() {
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.state != StateDisconnected {
			live = append(live, s)
		}
	}
	r.presence.Broadcast(live, r.registry.Snapshot())
}
