// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, storage selection, authentication, realtime transport tuning, the
// optional Redis/NATS integrations, rate limiting and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// AuthConfig controls how caller identity is established.
//
// With an empty JWTSecret the service runs in development mode and trusts the
// X-User-ID header.
type AuthConfig struct {
	JWTSecret  string // JWT_SECRET (HS256)
	CookieName string // AUTH_COOKIE_NAME, cookie carrying the token
}

// RealtimeConfig tunes the websocket gateway and the event dispatcher.
type RealtimeConfig struct {
	Path            string        // WS_PATH
	SendQueue       int           // WS_SEND_QUEUE, per-session outbound buffer
	DispatchQueue   int           // WS_DISPATCH_QUEUE, router command buffer
	WriteWait       time.Duration // WS_WRITE_WAIT
	PongWait        time.Duration // WS_PONG_WAIT
	MaxMessageBytes int64         // WS_MAX_MESSAGE_BYTES
	EventRPS        float64       // WS_EVENT_RPS, inbound events per socket
	EventBurst      int           // WS_EVENT_BURST
	AllowedOrigins  []string      // WS_ALLOWED_ORIGINS, empty allows any
}

// PingPeriod derives the keepalive interval from PongWait.
func (r RealtimeConfig) PingPeriod() time.Duration { return (r.PongWait * 9) / 10 }

// StoreConfig selects the message store.
type StoreConfig struct {
	Driver        string // STORE_DRIVER: sqlite|mongo
	DBPath        string // DB_PATH (sqlite)
	MongoURI      string // MONGO_URI
	MongoDatabase string // MONGO_DATABASE
}

// RedisConfig enables the presence mirror when Addr is set.
type RedisConfig struct {
	Addr      string        // REDIS_ADDR
	Password  string        // REDIS_PASSWORD
	DB        int           // REDIS_DB
	KeyPrefix string        // REDIS_KEY_PREFIX
	TTL       time.Duration // REDIS_PRESENCE_TTL
}

// NATSConfig enables chat event publishing when URL is set.
type NATSConfig struct {
	URL           string // NATS_URL
	SubjectPrefix string // NATS_SUBJECT_PREFIX
	ClientName    string // NATS_CLIENT_NAME
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	// Messaging
	MessageMaxRunes int // MESSAGE_MAX_RUNES

	// Rate limiting
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration

	Auth     AuthConfig
	Realtime RealtimeConfig
	Store    StoreConfig
	Redis    RedisConfig
	NATS     NATSConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getdur("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		MessageMaxRunes: getint("MESSAGE_MAX_RUNES", 2000),

		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		Auth: AuthConfig{
			JWTSecret:  getenv("JWT_SECRET", ""),
			CookieName: getenv("AUTH_COOKIE_NAME", "token"),
		},
		Realtime: RealtimeConfig{
			Path:            normalizeBasePath(getenv("WS_PATH", "/ws")),
			SendQueue:       getint("WS_SEND_QUEUE", 64),
			DispatchQueue:   getint("WS_DISPATCH_QUEUE", 1024),
			WriteWait:       getdur("WS_WRITE_WAIT", 10*time.Second),
			PongWait:        getdur("WS_PONG_WAIT", 60*time.Second),
			MaxMessageBytes: int64(getint("WS_MAX_MESSAGE_BYTES", 64<<10)),
			EventRPS:        getfloat("WS_EVENT_RPS", 20),
			EventBurst:      getint("WS_EVENT_BURST", 40),
			AllowedOrigins:  splitCSV(getenv("WS_ALLOWED_ORIGINS", "")),
		},
		Store: StoreConfig{
			Driver:        strings.ToLower(getenv("STORE_DRIVER", StoreSQLite)),
			DBPath:        getenv("DB_PATH", "app.db"),
			MongoURI:      getenv("MONGO_URI", ""),
			MongoDatabase: getenv("MONGO_DATABASE", "jobportal"),
		},
		Redis: RedisConfig{
			Addr:      getenv("REDIS_ADDR", ""),
			Password:  getenv("REDIS_PASSWORD", ""),
			DB:        getint("REDIS_DB", 0),
			KeyPrefix: getenv("REDIS_KEY_PREFIX", "jobportal:presence"),
			TTL:       getdur("REDIS_PRESENCE_TTL", 2*time.Minute),
		},
		NATS: NATSConfig{
			URL:           getenv("NATS_URL", ""),
			SubjectPrefix: strings.Trim(getenv("NATS_SUBJECT_PREFIX", "jobportal.chat"), "."),
			ClientName:    getenv("NATS_CLIENT_NAME", "jobportal-chat"),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "jobportal-chat"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Realtime.Path == "/" {
		cfg.Realtime.Path = "/ws"
	}

	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.MessageMaxRunes < 1 {
		return errors.New("MESSAGE_MAX_RUNES must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if strings.TrimSpace(cfg.Auth.CookieName) == "" {
		return errors.New("AUTH_COOKIE_NAME must not be empty")
	}

	rt := cfg.Realtime
	if rt.SendQueue < 1 || rt.DispatchQueue < 1 {
		return errors.New("WS_SEND_QUEUE and WS_DISPATCH_QUEUE must be >= 1")
	}
	if rt.WriteWait <= 0 || rt.PongWait <= 0 {
		return errors.New("WS_WRITE_WAIT and WS_PONG_WAIT must be positive durations")
	}
	if rt.MaxMessageBytes < 512 {
		return errors.New("WS_MAX_MESSAGE_BYTES must be >= 512")
	}
	if rt.EventRPS <= 0 || rt.EventBurst < 1 {
		return errors.New("WS_EVENT_RPS must be > 0 and WS_EVENT_BURST >= 1")
	}

	switch cfg.Store.Driver {
	case StoreSQLite:
		if strings.TrimSpace(cfg.Store.DBPath) == "" {
			return errors.New("DB_PATH must not be empty")
		}
	case StoreMongo:
		if strings.TrimSpace(cfg.Store.MongoURI) == "" {
			return errors.New("MONGO_URI is required when STORE_DRIVER=mongo")
		}
		if strings.TrimSpace(cfg.Store.MongoDatabase) == "" {
			return errors.New("MONGO_DATABASE must not be empty")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q", StoreSQLite, StoreMongo)
	}

	if cfg.Redis.Addr != "" && cfg.Redis.TTL <= 0 {
		return errors.New("REDIS_PRESENCE_TTL must be > 0")
	}
	if cfg.NATS.URL != "" && cfg.NATS.SubjectPrefix == "" {
		return errors.New("NATS_SUBJECT_PREFIX must not be empty")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
