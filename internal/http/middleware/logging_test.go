package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

func assertErrorBody(t *testing.T, w *httptest.ResponseRecorder, code string) {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, w.Body.String())
	}
	if body["code"] != code {
		t.Fatalf("code = %q, want %q", body["code"], code)
	}
	if body["request_id"] == "" {
		t.Fatalf("request_id missing in %v", body)
	}
}

func TestRequestID_GenerateAndPropagate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/rid", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	cases := []struct {
		name, in string
		keep     bool
	}{
		{"absent", "", false},
		{"valid", "abc-123", true},
		{"injection", "x\" evil", false},
		{"too long", strings.Repeat("a", 200), false},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/rid", nil)
		if tc.in != "" {
			req.Header.Set(strings.ToLower(requestIDHeader), tc.in)
		}
		r.ServeHTTP(w, req)

		got := w.Header().Get(requestIDHeader)
		if got == "" || got != w.Body.String() {
			t.Fatalf("%s: header %q, context %q", tc.name, got, w.Body.String())
		}
		if (got == tc.in) != tc.keep {
			t.Fatalf("%s: got %q, keep=%v", tc.name, got, tc.keep)
		}
	}
}

func TestRecovery_PanicsToJSON500AndLogs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	r := gin.New()
	r.Use(RequestID(), RedactingLogger(RedactOptions{}), Recovery())
	r.GET("/boom", func(*gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	assertErrorBody(t, w, "internal_error")

	rid := w.Header().Get(requestIDHeader)
	logs := buf.String()
	if !strings.Contains(logs, `"panic":"kaboom"`) || !strings.Contains(logs, `"request_id":"`+rid+`"`) {
		t.Fatalf("panic log missing fields:\n%s", logs)
	}
}

func TestRecovery_AfterWriteOnlySetsStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	captureLogger(t)

	r := gin.New()
	r.Use(Recovery())
	r.GET("/late", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/late", nil))
	if w.Body.String() != "partial" {
		t.Fatalf("body must not be rewritten, got %q", w.Body.String())
	}
}

func TestLoggerFrom_FallbackAndScoped(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := captureLogger(t)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if LoggerFrom(c) == nil {
		t.Fatalf("fallback logger must not be nil")
	}

	c.Set(requestIDKey, "rid-1")
	c.Set(ctxKeyUserID, "u1")
	l := requestLogger(c)
	c.Set(loggerKey, &l)
	LoggerFrom(c).Info().Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"rid-1"`) || !strings.Contains(out, `"user_id":"u1"`) {
		t.Fatalf("scoped fields missing: %s", out)
	}
}

func TestTruncate(t *testing.T) {
	if truncate("abc", 0) != "abc" || truncate("abc", 5) != "abc" || truncate("abcdef", 3) != "abc…" {
		t.Fatalf("truncate mismatch")
	}
}
