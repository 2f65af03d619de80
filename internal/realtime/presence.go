package realtime

import "github.com/rs/zerolog"

// PresenceMirror receives every online-set change. Implementations run on the
// dispatch goroutine and must not block.
type PresenceMirror interface {
	PresenceChanged(online []string)
}

// Broadcaster fans the full online set out to every live session. There is no
// diffing and no per-recipient filtering; each change costs one frame per
// session.
type Broadcaster struct {
	mirrors []PresenceMirror
	log     zerolog.Logger
}

// NewBroadcaster returns a broadcaster that also notifies mirrors.
func NewBroadcaster(log zerolog.Logger, mirrors ...PresenceMirror) *Broadcaster {
	b := &Broadcaster{log: log}
	for _, m := range mirrors {
		if m != nil {
			b.mirrors = append(b.mirrors, m)
		}
	}
	return b
}

// Broadcast sends online to sessions. It returns how many sessions could not
// take the frame.
func (b *Broadcaster) Broadcast(sessions []*Session, online []string) int {
	onlineUsers.Set(float64(len(online)))

	frame := mustFrame(EventOnlineUsers, online)
	dropped := 0
	for _, s := range sessions {
		if !s.enqueue(frame) {
			dropped++
		}
	}
	if dropped > 0 {
		b.log.Debug().Int("dropped", dropped).Int("online", len(online)).Msg("presence frame dropped")
	}

	for _, m := range b.mirrors {
		m.PresenceChanged(online)
	}
	return dropped
}
