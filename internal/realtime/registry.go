package realtime

import "sort"

// Registry maps a user identity to its single active session id. It is the
// only answer to "is user X reachable now".
//
// Registry is not safe for concurrent use: the Router's dispatch goroutine
// owns it. Empty user ids are never stored and always look up as absent.
type Registry struct {
	byUser   map[string]string
	onChange func()
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]string)}
}

// OnChange sets the callback run after every membership change.
func (r *Registry) OnChange(fn func()) { r.onChange = fn }

func (r *Registry) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}

// Bind points userID at sessionID, replacing any previous session.
func (r *Registry) Bind(userID, sessionID string) {
	if userID == "" {
		return
	}
	r.byUser[userID] = sessionID
	r.changed()
}

// Unbind removes userID. Unbinding an absent user is a no-op.
func (r *Registry) Unbind(userID string) {
	if _, ok := r.byUser[userID]; !ok {
		return
	}
	delete(r.byUser, userID)
	r.changed()
}

// UnbindSession removes userID only while it is still bound to sessionID. A
// superseded session closing late leaves the newer binding alone. It reports
// whether a binding was removed.
func (r *Registry) UnbindSession(userID, sessionID string) bool {
	if cur, ok := r.byUser[userID]; !ok || cur != sessionID {
		return false
	}
	delete(r.byUser, userID)
	r.changed()
	return true
}

// Lookup returns the session bound to userID.
func (r *Registry) Lookup(userID string) (string, bool) {
	if userID == "" {
		return "", false
	}
	sid, ok := r.byUser[userID]
	return sid, ok
}

// Snapshot returns the bound user ids, sorted.
func (r *Registry) Snapshot() []string {
	out := make([]string, 0, len(r.byUser))
	for u := range r.byUser {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Len is the number of bound users.
func (r *Registry) Len() int { return len(r.byUser) }
