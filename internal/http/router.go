// Package httpapi wires the HTTP transport (Gin) to the chat services, the
// realtime gateway, middleware and route handlers. It centralizes
// cross-cutting concerns such as tracing, correlation IDs, logging/redaction,
// panic recovery, metrics, compression, CORS, security headers,
// authentication, idempotency and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-jobportal-chat/internal/config"
	"github.com/tbourn/go-jobportal-chat/internal/docs"
	"github.com/tbourn/go-jobportal-chat/internal/http/handlers"
	"github.com/tbourn/go-jobportal-chat/internal/http/middleware"
	"github.com/tbourn/go-jobportal-chat/internal/repo"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// Deps are the application components the routes are bound to.
type Deps struct {
	// Service implements the chat use cases. Required.
	Service handlers.ConversationService
	// Ledger stores idempotency records. Nil disables replay.
	Ledger *repo.IdempotencyLedger
	// Stats feeds the peer-list ETag. Nil disables conditional GETs.
	Stats handlers.InboxStatsSource
	// Realtime serves the websocket endpoint. Nil leaves it unmounted.
	Realtime gin.HandlerFunc
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine: health, metrics and docs at the root, the websocket endpoint at
// cfg.Realtime.Path and the authenticated REST API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Compression (never on the websocket path)
//  8. CORS and Security headers
//
// On the API group, after authentication:
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per user/IP, bypass on replay)
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderUserID, middleware.HeaderIdempotencyKey, "Sec-WebSocket-Key"},
		MaskQuery:   []string{middleware.QueryToken},
		SkipPaths:   []string{"/health", "/metrics"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(maxBodyBytes))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Compression; a hijacked websocket must not be wrapped
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{cfg.Realtime.Path, "/metrics"})))

	// 8) CORS posture and security headers
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
		NoStorePaths: []string{
			joinPath(cfg.APIBasePath, "/messages/unread-total"),
			joinPath(cfg.APIBasePath, "/conversations/:peerId"),
		},
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authOpts := middleware.AuthOptions{
		Secret:     cfg.Auth.JWTSecret,
		CookieName: cfg.Auth.CookieName,
		Leeway:     30 * time.Second,
	}

	// Realtime: in development mode a socket may connect anonymously and
	// identify itself with its join event.
	if deps.Realtime != nil {
		wsAuth := authOpts
		wsAuth.Optional = cfg.Auth.JWTSecret == ""
		r.GET(cfg.Realtime.Path, middleware.Auth(wsAuth), deps.Realtime)
	}

	var (
		idem   handlers.IdempotencyStore
		lookup middleware.IdempotencyLookup
	)
	if deps.Ledger != nil {
		idem = deps.Ledger
		lookup = deps.Ledger.Exists
	}
	h := handlers.New(deps.Service, idem, deps.Stats)
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.Auth(authOpts))
	limited := rl.Handler()
	{
		// Messages. Only a send can be a replay, so only a send may skip
		// the limiter.
		api.POST("/messages",
			middleware.IdempotencyValidator(middleware.IdempotencyOptions{Scope: handlers.ScopeSendMessage}, lookup),
			limited,
			h.SendMessage,
		)
		api.GET("/messages/unread-total", limited, h.UnreadTotal)
		api.GET("/messages/:id", limited, h.GetMessage)

		// Conversations
		api.GET("/conversations", limited, h.ListConversations)
		api.GET("/conversations/:peerId", limited, h.OpenConversation)
		api.DELETE("/conversations/:peerId", limited, h.DeleteConversation)
	}
}

// corsMiddleware returns the CORS chain. With no configured origins every
// origin is allowed without credentials; otherwise allowed origins are
// echoed back.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderUserID, middleware.HeaderIdempotencyKey, "If-None-Match"},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", "Idempotency-Replayed"},
		MaxAge:        12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header.
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	base.AllowCredentials = true
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
