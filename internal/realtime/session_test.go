package realtime

import "testing"

func TestTransitions(t *testing.T) {
	cases := []struct {
		from  State
		event string
		to    State
		ok    bool
	}{
		{StateConnected, EventJoin, StateJoined, true},
		{StateConnected, eventClosed, StateDisconnected, true},
		{StateConnected, EventTyping, 0, false},
		{StateConnected, EventSendMessage, 0, false},
		{StateConnected, EventLogout, 0, false},
		{StateJoined, EventTyping, StateJoined, true},
		{StateJoined, EventStopTyping, StateJoined, true},
		{StateJoined, EventSendMessage, StateJoined, true},
		{StateJoined, EventLogout, StateDisconnected, true},
		{StateJoined, eventClosed, StateDisconnected, true},
		{StateJoined, EventJoin, 0, false},
		{StateJoined, "bogus", 0, false},
		{StateDisconnected, EventJoin, 0, false},
		{StateDisconnected, eventClosed, 0, false},
	}
	for _, tc := range cases {
		got, ok := nextState(tc.from, tc.event)
		if ok != tc.ok || (ok && got != tc.to) {
			t.Fatalf("nextState(%s, %q) = %s, %v; want %s, %v", tc.from, tc.event, got, ok, tc.to, tc.ok)
		}
	}
}

func TestStateString(t *testing.T) {
	if StateConnected.String() != "connected" || StateJoined.String() != "joined" ||
		StateDisconnected.String() != "disconnected" || State(9).String() != "invalid" {
		t.Fatalf("unexpected state names")
	}
}

func TestSession_EnqueueNeverBlocks(t *testing.T) {
	s := NewSession("s", "", 1)
	if !s.enqueue([]byte("a")) {
		t.Fatalf("first frame should fit")
	}
	if s.enqueue([]byte("b")) {
		t.Fatalf("full queue must refuse")
	}
	<-s.Outbound()

	s.Close()
	s.Close() // idempotent
	if s.enqueue([]byte("c")) {
		t.Fatalf("closed session must refuse")
	}
	select {
	case <-s.Done():
	default:
		t.Fatalf("Done should be closed")
	}
}

func TestNewSession_DefaultQueue(t *testing.T) {
	s := NewSession("s", "u", 0)
	if cap(s.send) != 64 || s.AuthUserID != "u" || s.state != StateConnected {
		t.Fatalf("unexpected session: cap=%d %+v", cap(s.send), s)
	}
}
