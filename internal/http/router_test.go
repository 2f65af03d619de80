package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-jobportal-chat/internal/config"
	"github.com/tbourn/go-jobportal-chat/internal/domain"
	"github.com/tbourn/go-jobportal-chat/internal/http/middleware"
	"github.com/tbourn/go-jobportal-chat/internal/repo"
	"github.com/tbourn/go-jobportal-chat/internal/services"
)

func testConfig() config.Config {
	return config.Config{
		APIBasePath: "/api/v1",
		RateRPS:     100,
		RateBurst:   10,
		Auth:        config.AuthConfig{CookieName: "token"},
		Realtime:    config.RealtimeConfig{Path: "/ws"},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
	}
}

// newTestRouter wires the real SQLite store behind the routes. The stub
// realtime handler answers with the identity the websocket auth resolved.
func newTestRouter(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "router.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	seed := []domain.User{
		{ID: "u1", Fullname: "User One", Email: "u1@example.com", Role: domain.RoleStudent},
		{ID: "u2", Fullname: "User Two", Email: "u2@example.com", Role: domain.RoleRecruiter},
	}
	if err := db.Create(&seed).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := repo.NewSQLStore(db)
	r := gin.New()
	RegisterRoutes(r, Deps{
		Service: services.NewConversationService(store, store, nil),
		Ledger:  &repo.IdempotencyLedger{DB: db},
		Stats:   store,
		Realtime: func(c *gin.Context) {
			c.String(http.StatusOK, "ws:"+middleware.UserIDFrom(c))
		},
	}, cfg)
	return r
}

func serve(r *gin.Engine, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r := newTestRouter(t, testConfig())

	w := serve(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}

	w = serve(r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	if w = serve(r, http.MethodGet, "/nope", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	if w = serve(r, http.MethodPost, "/health", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
	if w = serve(r, http.MethodGet, "/swagger/index.html", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger must be off by default, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://portal.example.com"}}
	r := newTestRouter(t, cfg)

	w := serve(r, http.MethodGet, "/health", "", map[string]string{"Origin": "http://portal.example.com"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://portal.example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
	w = serve(r, http.MethodGet, "/health", "", map[string]string{"Origin": "http://evil.example.com"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unknown origin must not be echoed, got %q", got)
	}
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	r := newTestRouter(t, cfg)

	w := serve(r, http.MethodGet, "/swagger/doc.json", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/conversations/{peerId}") {
		t.Fatalf("doc.json: %d %s", w.Code, w.Body.String())
	}
}

func TestAPI_DevModeAuth(t *testing.T) {
	r := newTestRouter(t, testConfig())

	if w := serve(r, http.MethodGet, "/api/v1/messages/unread-total", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous API call = %d", w.Code)
	}
	w := serve(r, http.MethodGet, "/api/v1/messages/unread-total", "", map[string]string{middleware.HeaderUserID: "u1"})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"total":0`) {
		t.Fatalf("unread-total: %d %s", w.Code, w.Body.String())
	}
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Fatalf("unread-total Cache-Control = %q", cc)
	}

	// Sockets may connect anonymously in development mode.
	if w := serve(r, http.MethodGet, "/ws", "", nil); w.Code != http.StatusOK || w.Body.String() != "ws:" {
		t.Fatalf("anonymous ws = %d %q", w.Code, w.Body.String())
	}
	if w := serve(r, http.MethodGet, "/ws", "", map[string]string{middleware.HeaderUserID: "u2"}); w.Body.String() != "ws:u2" {
		t.Fatalf("ws identity = %q", w.Body.String())
	}
}

func TestAPI_JWTAuth(t *testing.T) {
	const secret = "router-secret"
	cfg := testConfig()
	cfg.Auth.JWTSecret = secret
	r := newTestRouter(t, cfg)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if w := serve(r, http.MethodGet, "/api/v1/conversations", "", map[string]string{middleware.HeaderUserID: "u1"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("X-User-ID must be ignored with a secret, got %d", w.Code)
	}
	w := serve(r, http.MethodGet, "/api/v1/conversations", "", map[string]string{"Authorization": "Bearer " + tok})
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"id":"u2"`) {
		t.Fatalf("bearer call: %d %s", w.Code, w.Body.String())
	}

	if w := serve(r, http.MethodGet, "/ws", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous ws with a secret = %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/ws?token="+tok, "", nil); w.Body.String() != "ws:u1" {
		t.Fatalf("ws query token identity = %q", w.Body.String())
	}
}

func TestAPI_IdempotentSendThroughStack(t *testing.T) {
	r := newTestRouter(t, testConfig())
	hdr := map[string]string{middleware.HeaderUserID: "u1", middleware.HeaderIdempotencyKey: "k-1"}
	body := `{"receiver_id":"u2","text":"hello"}`

	first := serve(r, http.MethodPost, "/api/v1/messages", body, hdr)
	second := serve(r, http.MethodPost, "/api/v1/messages", body, hdr)
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("codes = %d, %d (%s)", first.Code, second.Code, first.Body.String())
	}
	if second.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("second send was not replayed")
	}

	w := serve(r, http.MethodGet, "/api/v1/messages/unread-total", "", map[string]string{middleware.HeaderUserID: "u2"})
	if !strings.Contains(w.Body.String(), `"total":1`) {
		t.Fatalf("receiver unread = %s", w.Body.String())
	}

	bad := map[string]string{middleware.HeaderUserID: "u1", middleware.HeaderIdempotencyKey: "has spaces"}
	if w := serve(r, http.MethodPost, "/api/v1/messages", body, bad); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed key = %d", w.Code)
	}
}

func TestAPI_RateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS = 0.01
	cfg.RateBurst = 1
	r := newTestRouter(t, cfg)
	hdr := map[string]string{middleware.HeaderUserID: "u1"}

	if w := serve(r, http.MethodGet, "/api/v1/messages/unread-total", "", hdr); w.Code != http.StatusOK {
		t.Fatalf("first call = %d", w.Code)
	}
	w := serve(r, http.MethodGet, "/api/v1/messages/unread-total", "", hdr)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Fatalf("second call = %d Retry-After=%q", w.Code, w.Header().Get("Retry-After"))
	}
	// Buckets are per caller.
	if w := serve(r, http.MethodGet, "/api/v1/messages/unread-total", "", map[string]string{middleware.HeaderUserID: "u2"}); w.Code != http.StatusOK {
		t.Fatalf("other caller = %d", w.Code)
	}
}

func TestAPI_SendKeyDoesNotBypassLimiterElsewhere(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS = 0.01
	cfg.RateBurst = 1
	r := newTestRouter(t, cfg)
	hdr := map[string]string{middleware.HeaderUserID: "u1", middleware.HeaderIdempotencyKey: "k-1"}

	if w := serve(r, http.MethodPost, "/api/v1/messages", `{"receiver_id":"u2","text":"hi"}`, hdr); w.Code != http.StatusCreated {
		t.Fatalf("send = %d (%s)", w.Code, w.Body.String())
	}
	// The replayed send itself is still exempt.
	if w := serve(r, http.MethodPost, "/api/v1/messages", `{"receiver_id":"u2","text":"hi"}`, hdr); w.Code != http.StatusCreated {
		t.Fatalf("replayed send = %d", w.Code)
	}
	for _, path := range []string{"/api/v1/conversations/u2", "/api/v1/messages/unread-total"} {
		if w := serve(r, http.MethodGet, path, "", hdr); w.Code != http.StatusTooManyRequests {
			t.Fatalf("GET %s with a send key = %d, want 429", path, w.Code)
		}
	}
	if w := serve(r, http.MethodDelete, "/api/v1/conversations/u2", "", hdr); w.Code != http.StatusTooManyRequests {
		t.Fatalf("DELETE with a send key = %d, want 429", w.Code)
	}
}

func TestAccessLog_MasksCallerHeaders(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	r := newTestRouter(t, testConfig())
	hdr := map[string]string{middleware.HeaderUserID: "u1", middleware.HeaderIdempotencyKey: "send-key-42"}
	if w := serve(r, http.MethodPost, "/api/v1/messages", `{"receiver_id":"u2","text":"hi"}`, hdr); w.Code != http.StatusCreated {
		t.Fatalf("send = %d (%s)", w.Code, w.Body.String())
	}

	raw := buf.String()
	if strings.Contains(raw, "send-key-42") {
		t.Fatalf("idempotency key logged in clear:\n%s", raw)
	}
	for _, h := range []string{`"Idempotency-Key":"[REDACTED]"`, `"X-User-Id":"[REDACTED]"`} {
		if !strings.Contains(raw, h) {
			t.Fatalf("access log missing %s:\n%s", h, raw)
		}
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix_and_joinPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}

	if got := joinPath("/", "/x"); got != "/x" {
		t.Fatalf("joinPath root = %q", got)
	}
	if got := joinPath("/api/v1", "/x"); got != "/api/v1/x" {
		t.Fatalf("joinPath = %q", got)
	}
}
