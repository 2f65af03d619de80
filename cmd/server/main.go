// Command server runs the job portal chat service: the REST API, the
// realtime websocket gateway and the background workers that support them.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-jobportal-chat/internal/config"
	"github.com/tbourn/go-jobportal-chat/internal/events"
	httpapi "github.com/tbourn/go-jobportal-chat/internal/http"
	"github.com/tbourn/go-jobportal-chat/internal/http/handlers"
	"github.com/tbourn/go-jobportal-chat/internal/http/middleware"
	"github.com/tbourn/go-jobportal-chat/internal/observability"
	"github.com/tbourn/go-jobportal-chat/internal/presence"
	"github.com/tbourn/go-jobportal-chat/internal/realtime"
	"github.com/tbourn/go-jobportal-chat/internal/repo"
	"github.com/tbourn/go-jobportal-chat/internal/repo/mongostore"
	"github.com/tbourn/go-jobportal-chat/internal/services"
	"github.com/tbourn/go-jobportal-chat/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// purgeEvery is how often expired idempotency records are removed.
const purgeEvery = time.Hour

// backend is what every store driver provides.
type backend interface {
	services.MessageStore
	services.Directory
	handlers.InboxStatsSource
}

// store bundles the message store and directory selected by STORE_DRIVER.
type store struct {
	messages services.MessageStore
	users    services.Directory
	stats    handlers.InboxStatsSource
	close    func(context.Context) error
}

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	gin.SetMode(cfg.GinMode)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appVersion := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	shutdownTracing, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn().Err(err).Msg("tracing shutdown")
		}
	}()

	// The SQLite database always backs the idempotency ledger, and the
	// message store too unless Mongo is selected.
	db, err := repo.OpenSQLite(cfg.Store.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}
	ledger := &repo.IdempotencyLedger{DB: db, TTL: cfg.IdempotencyTTL}

	st, err := openStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.close(cctx); err != nil {
			log.Warn().Err(err).Msg("store close")
		}
	}()

	// Optional integrations: presence mirror and event bus.
	var (
		mirrors   []realtime.PresenceMirror
		publisher events.Publisher = events.NopPublisher{}
	)
	if cfg.Redis.Addr != "" {
		rdb, err := presence.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		mirror := presence.NewRedisMirror(rdb, cfg.Redis.KeyPrefix, cfg.Redis.TTL)
		go mirror.Run(ctx)
		mirrors = append(mirrors, mirror)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis presence mirror enabled")
	}
	if cfg.NATS.URL != "" {
		nc, err := events.Connect(cfg.NATS.URL, cfg.NATS.ClientName)
		if err != nil {
			return err
		}
		defer nc.Drain()
		pub := events.NewNATSPublisher(nc, cfg.NATS.SubjectPrefix)
		publisher = pub
		mirrors = append(mirrors, pub)
		log.Info().Str("subject_prefix", cfg.NATS.SubjectPrefix).Msg("nats publishing enabled")
	}

	// Realtime core: one dispatcher goroutine owns sessions and presence.
	rt := realtime.NewRouter(realtime.NewRegistry(), realtime.RouterOptions{
		QueueSize: cfg.Realtime.DispatchQueue,
		Mirrors:   mirrors,
	})
	rtDone := make(chan struct{})
	go func() {
		defer close(rtDone)
		rt.Run(ctx)
	}()

	svc := services.NewConversationService(st.messages, st.users, realtime.NewBridge(rt, publisher))
	svc.MaxTextRunes = cfg.MessageMaxRunes

	gw := realtime.NewGateway(rt, realtime.GatewayConfig{
		WriteWait:       cfg.Realtime.WriteWait,
		PongWait:        cfg.Realtime.PongWait,
		PingPeriod:      cfg.Realtime.PingPeriod(),
		MaxMessageBytes: cfg.Realtime.MaxMessageBytes,
		SendQueue:       cfg.Realtime.SendQueue,
		EventRPS:        cfg.Realtime.EventRPS,
		EventBurst:      cfg.Realtime.EventBurst,
		AllowedOrigins:  cfg.Realtime.AllowedOrigins,
	}, middleware.UserIDFrom)

	engine := gin.New()
	httpapi.RegisterRoutes(engine, httpapi.Deps{
		Service:  svc,
		Ledger:   ledger,
		Stats:    st.stats,
		Realtime: gw.Handle,
	}, cfg)

	go purgeIdempotency(ctx, ledger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("store", cfg.Store.Driver).
			Str("ws_path", cfg.Realtime.Path).
			Str("version", appVersion).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	// Shutdown does not wait for hijacked websocket connections; stopping the
	// router closes them.
	err = srv.Shutdown(sctx)
	stop()
	select {
	case <-rtDone:
	case <-sctx.Done():
		log.Warn().Msg("realtime router did not stop in time")
	}
	return err
}

// openStore returns the message store and directory for cfg.Store.Driver.
func openStore(ctx context.Context, cfg config.Config, db *gorm.DB) (store, error) {
	switch cfg.Store.Driver {
	case config.StoreMongo:
		client, err := mongostore.Connect(ctx, cfg.Store.MongoURI)
		if err != nil {
			return store{}, err
		}
		ms := mongostore.New(client.Database(cfg.Store.MongoDatabase))
		ictx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := ms.EnsureIndexes(ictx); err != nil {
			_ = client.Disconnect(ctx)
			return store{}, err
		}
		return newStore(ms, client.Disconnect), nil
	default:
		return newStore(repo.NewSQLStore(db), func(context.Context) error { return nil }), nil
	}
}

func newStore(b backend, closeFn func(context.Context) error) store {
	return store{messages: b, users: b, stats: b, close: closeFn}
}

// purgeIdempotency removes expired idempotency records until ctx ends.
func purgeIdempotency(ctx context.Context, ledger *repo.IdempotencyLedger) {
	t := time.NewTicker(purgeEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := ledger.Purge(ctx, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge")
				continue
			}
			if n > 0 {
				log.Debug().Int64("purged", n).Msg("idempotency purge")
			}
		}
	}
}
