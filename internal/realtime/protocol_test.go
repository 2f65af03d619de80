package realtime

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestParseJoin(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`"u1"`, "u1"},
		{`" u1 "`, "u1"},
		{`{"userId":"u2"}`, "u2"},
		{`{"userId":""}`, ""},
		{`""`, ""},
		{`null`, ""},
		{`42`, ""},
		{`["u1"]`, ""},
		{`{"userId":`, ""},
		{``, ""},
	}
	for _, tc := range cases {
		if got := parseJoin(json.RawMessage(tc.raw)); got != tc.want {
			t.Fatalf("parseJoin(%s) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestParseTarget(t *testing.T) {
	if got := parseTarget(json.RawMessage(`{"to":"b","from":"spoofed"}`)); got != "b" {
		t.Fatalf("parseTarget = %q", got)
	}
	for _, raw := range []string{``, `{}`, `"b"`, `{"to":1}`} {
		if got := parseTarget(json.RawMessage(raw)); got != "" {
			t.Fatalf("parseTarget(%s) = %q, want empty", raw, got)
		}
	}
}

func TestParseSendMessage(t *testing.T) {
	p, ok := parseSendMessage(json.RawMessage(`{"receiverId":"b","message":{"id":"m1","text":"hi"}}`))
	if !ok || p.ReceiverID != "b" || string(p.Message) != `{"id":"m1","text":"hi"}` {
		t.Fatalf("parseSendMessage = %+v, %v", p, ok)
	}
	for _, raw := range []string{
		``,
		`{"receiverId":"","message":{}}`,
		`{"receiverId":"b"}`,
		`{"receiverId":"b","message":null}`,
		`not json`,
	} {
		if _, ok := parseSendMessage(json.RawMessage(raw)); ok {
			t.Fatalf("parseSendMessage(%s) should fail", raw)
		}
	}
}

func TestEncodeDecodeFrame(t *testing.T) {
	b, err := EncodeFrame(EventTyping, TypingPayload{To: "b", From: "a"})
	if err != nil {
		t.Fatalf("EncodeFrame: %v", err)
	}
	env, err := DecodeEnvelope(b)
	if err != nil || env.Type != EventTyping {
		t.Fatalf("DecodeEnvelope = %+v, %v", env, err)
	}
	var p TypingPayload
	if err := json.Unmarshal(env.Data, &p); err != nil || p.To != "b" || p.From != "a" {
		t.Fatalf("payload = %+v, %v", p, err)
	}

	bare, _ := EncodeFrame(EventRefreshUsers, nil)
	if string(bare) != `{"type":"refreshUsers"}` {
		t.Fatalf("bare frame = %s", bare)
	}

	if _, err := DecodeEnvelope([]byte("{")); err == nil {
		t.Fatalf("malformed frame should fail")
	}
	env, _ = DecodeEnvelope([]byte(`{"type":" logout ","extra":1}`))
	if env.Type != EventLogout {
		t.Fatalf("type not trimmed: %q", env.Type)
	}
}
