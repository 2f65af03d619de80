// Package realtime implements the live side of the chat subsystem: the
// connection registry, presence broadcasting, the per-session event router and
// the websocket gateway that feeds it.
//
// This file defines the wire protocol. Every frame is a JSON text message of
// the form {"type": "<event>", "data": <payload>}.
package realtime

import (
	"bytes"
	"strings"

	"github.com/goccy/go-json"
)

// Event names, client to server.
const (
	EventJoin        = "join"
	EventTyping      = "typing"
	EventStopTyping  = "stopTyping"
	EventSendMessage = "sendMessage"
	EventLogout      = "logout"
)

// Event names, server to client.
const (
	EventOnlineUsers    = "onlineUsers"
	EventReceiveMessage = "receiveMessage"
	EventMessagesSeen   = "messagesSeen"
	EventRefreshUsers   = "refreshUsers"
)

// eventClosed is the implicit transport-close event. It never appears on the
// wire.
const eventClosed = "$closed"

// Envelope is one frame.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// TypingPayload is carried by typing and stopTyping. Clients only send To;
// the router fills From with the sender's joined identity.
type TypingPayload struct {
	To   string `json:"to"`
	From string `json:"from,omitempty"`
}

// SendMessagePayload is the client's live push of an already stored message.
type SendMessagePayload struct {
	ReceiverID string          `json:"receiverId"`
	Message    json.RawMessage `json:"message"`
}

// SeenPayload tells a sender that From has read their messages.
type SeenPayload struct {
	From string `json:"from"`
}

type joinObject struct {
	UserID string `json:"userId"`
}

// DecodeEnvelope parses an inbound frame. Unknown fields are ignored.
func DecodeEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, err
	}
	env.Type = strings.TrimSpace(env.Type)
	return env, nil
}

// EncodeFrame builds an outbound frame. A nil data omits the field.
func EncodeFrame(typ string, data any) ([]byte, error) {
	env := Envelope{Type: typ}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// mustFrame is EncodeFrame for payloads that cannot fail to marshal.
func mustFrame(typ string, data any) []byte {
	b, err := EncodeFrame(typ, data)
	if err != nil {
		panic(err)
	}
	return b
}

// parseJoin accepts "userId" or {"userId": "..."}; anything else yields "".
func parseJoin(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return ""
		}
		return strings.TrimSpace(s)
	case '{':
		var o joinObject
		if json.Unmarshal(raw, &o) != nil {
			return ""
		}
		return strings.TrimSpace(o.UserID)
	}
	return ""
}

// parseTarget extracts the "to" field of typing and stopTyping.
func parseTarget(raw json.RawMessage) string {
	var p TypingPayload
	if len(raw) == 0 || json.Unmarshal(raw, &p) != nil {
		return ""
	}
	return strings.TrimSpace(p.To)
}

// parseSendMessage validates a sendMessage payload. ok is false when the
// receiver or the message is missing.
func parseSendMessage(raw json.RawMessage) (SendMessagePayload, bool) {
	var p SendMessagePayload
	if len(raw) == 0 || json.Unmarshal(raw, &p) != nil {
		return SendMessagePayload{}, false
	}
	p.ReceiverID = strings.TrimSpace(p.ReceiverID)
	msg := bytes.TrimSpace(p.Message)
	if p.ReceiverID == "" || len(msg) == 0 || bytes.Equal(msg, []byte("null")) {
		return SendMessagePayload{}, false
	}
	p.Message = msg
	return p, true
}
