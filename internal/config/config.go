package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr         string
	APIBaseURL       string
	SocketURL        string
	APITimeout       time.Duration
	CSRFHeader       string
	CSRFTTL          time.Duration
	DefaultLang      string
	GuardWaitTimeout time.Duration

	VisitorSecret        string
	VisitorIssuer        string
	VisitorCookie        string
	VisitorTTL           time.Duration
	VisitorStore         string
	VisitorCacheSize     int
	VisitorIdleTimeout   time.Duration
	VisitorSweepInterval time.Duration
	CookieSecure         bool

	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MySQLDSN      string
	DatabaseURL   string

	PresenceReconnectAttempts int
	PresenceBackoffInitial    time.Duration
	PresenceBackoffMax        time.Duration
	PresenceReconnectOnKick   bool
}

func Load() Config {
	apiBase := strings.TrimRight(getenv("API_BASE_URL", "http://127.0.0.1:5000/api"), "/")
	return Config{
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		APIBaseURL:       apiBase,
		SocketURL:        getenv("SOCKET_URL", SocketURLFrom(apiBase)),
		APITimeout:       getenvDuration("API_TIMEOUT", 15*time.Second),
		CSRFHeader:       getenv("CSRF_HEADER", "X-CSRF-Token"),
		CSRFTTL:          getenvDuration("CSRF_TTL", 5*time.Minute),
		DefaultLang:      getenv("DEFAULT_LANG", "en"),
		GuardWaitTimeout: getenvDuration("GUARD_WAIT_TIMEOUT", 3*time.Second),

		VisitorSecret:        getenv("VISITOR_SECRET", "dev-visitor-secret"),
		VisitorIssuer:        getenv("VISITOR_ISSUER", "blog-web"),
		VisitorCookie:        getenv("VISITOR_COOKIE", "blog_visitor"),
		VisitorTTL:           getenvDuration("VISITOR_TTL", 30*24*time.Hour),
		VisitorStore:         strings.ToLower(getenv("VISITOR_STORE", "memory")),
		VisitorCacheSize:     getenvInt("VISITOR_CACHE_SIZE", 1024),
		VisitorIdleTimeout:   getenvDuration("VISITOR_IDLE_TIMEOUT", 30*time.Minute),
		VisitorSweepInterval: getenvDuration("VISITOR_SWEEP_INTERVAL", time.Minute),
		CookieSecure:         getenvBool("COOKIE_SECURE", false),

		RedisAddr:     getenv("REDIS_ADDR", ""),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		SQLitePath:    getenv("SQLITE_PATH", "visitors.db"),
		MySQLDSN:      getenv("MYSQL_DSN", ""),
		DatabaseURL:   getenv("DATABASE_URL", ""),

		PresenceReconnectAttempts: getenvInt("PRESENCE_RECONNECT_ATTEMPTS", 5),
		PresenceBackoffInitial:    getenvDuration("PRESENCE_BACKOFF_INITIAL", time.Second),
		PresenceBackoffMax:        getenvDuration("PRESENCE_BACKOFF_MAX", 30*time.Second),
		PresenceReconnectOnKick:   getenvBool("PRESENCE_RECONNECT_ON_KICK", false),
	}
}

// SocketURLFrom derives the websocket endpoint from the API origin:
// http://host/api -> ws://host/socket.
func SocketURLFrom(apiBase string) string {
	origin := apiBase
	if idx := strings.Index(origin, "://"); idx >= 0 {
		if slash := strings.Index(origin[idx+3:], "/"); slash >= 0 {
			origin = origin[:idx+3+slash]
		}
	}
	switch {
	case strings.HasPrefix(origin, "https://"):
		origin = "wss://" + strings.TrimPrefix(origin, "https://")
	case strings.HasPrefix(origin, "http://"):
		origin = "ws://" + strings.TrimPrefix(origin, "http://")
	}
	return origin + "/socket"
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	if val := os.Getenv(key + "_SECONDS"); val != "" {
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
