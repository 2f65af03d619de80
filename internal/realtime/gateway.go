package realtime

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// GatewayConfig tunes the websocket transport.
type GatewayConfig struct {
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxMessageBytes int64
	SendQueue       int
	EventRPS        float64
	EventBurst      int
	// AllowedOrigins restricts the Origin header; empty allows any.
	AllowedOrigins []string
}

func (c GatewayConfig) withDefaults() GatewayConfig {
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = c.PongWait * 9 / 10
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = 64 << 10
	}
	if c.SendQueue <= 0 {
		c.SendQueue = 64
	}
	if c.EventRPS <= 0 {
		c.EventRPS = 20
	}
	if c.EventBurst <= 0 {
		c.EventBurst = 40
	}
	return c
}

// IdentityFunc returns the authenticated user of an upgrade request, or "".
type IdentityFunc func(c *gin.Context) string

// Gateway upgrades HTTP requests to websockets and pumps frames between each
// socket and the Router.
type Gateway struct {
	router   *Router
	cfg      GatewayConfig
	identity IdentityFunc
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewGateway returns a gateway feeding r. identity may be nil.
func NewGateway(r *Router, cfg GatewayConfig, identity IdentityFunc) *Gateway {
	cfg = cfg.withDefaults()
	g := &Gateway{
		router:   r,
		cfg:      cfg,
		identity: identity,
		log:      log.With().Str("component", "realtime.gateway").Logger(),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return g
}

// originChecker allows requests without an Origin header (non-browser
// clients) and, when origins are configured, only those origins.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(strings.TrimRight(origin, "/"))]
		return ok
	}
}

// Handle serves one websocket connection for its whole lifetime.
func (g *Gateway) Handle(c *gin.Context) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written an HTTP error.
		g.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	var authUser string
	if g.identity != nil {
		authUser = g.identity(c)
	}
	s := NewSession(NewSessionID(time.Now()), authUser, g.cfg.SendQueue)
	lg := g.log.With().Str("session_id", s.ID).Logger()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	if err := g.router.Connect(ctx, s); err != nil {
		lg.Warn().Err(err).Msg("router refused session")
		_ = conn.Close()
		return
	}
	lg.Debug().Str("auth_user_id", authUser).Msg("session connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		g.writePump(conn, s, lg)
	}()

	g.readPump(ctx, conn, s, lg)

	dctx, dcancel := context.WithTimeout(context.Background(), g.cfg.WriteWait)
	if err := g.router.Disconnect(dctx, s); err != nil {
		lg.Debug().Err(err).Msg("disconnect not delivered")
	}
	dcancel()
	s.Close()
	<-writerDone
	lg.Debug().Msg("session closed")
}

// readPump forwards inbound frames to the router in arrival order until the
// connection fails or the session shuts down.
func (g *Gateway) readPump(ctx context.Context, conn *websocket.Conn, s *Session, lg zerolog.Logger) {
	conn.SetReadLimit(g.cfg.MaxMessageBytes)
	if err := conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(g.cfg.PongWait))
	})

	limiter := rate.NewLimiter(rate.Limit(g.cfg.EventRPS), g.cfg.EventBurst)
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				lg.Debug().Err(err).Msg("unexpected websocket close")
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		env, err := DecodeEnvelope(data)
		if err != nil || env.Type == "" || env.Type == eventClosed {
			eventsTotal.WithLabelValues("unknown", outcomeIgnored).Inc()
			continue
		}
		if !limiter.Allow() {
			eventsTotal.WithLabelValues(eventLabel(env.Type), "rate_limited").Inc()
			continue
		}
		if err := g.router.Submit(ctx, s, env); err != nil {
			return
		}
	}
}

// writePump drains the session's outbound queue and keeps the peer alive
// with pings. It owns all writes to conn and closes it on exit.
func (g *Gateway) writePump(conn *websocket.Conn, s *Session, lg zerolog.Logger) {
	ticker := time.NewTicker(g.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case frame := <-s.Outbound():
			if err := conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				lg.Debug().Err(err).Msg("websocket write failed")
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(g.cfg.WriteWait))
			return
		}
	}
}
