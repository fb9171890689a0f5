package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ストレージドライバー
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreSQLite   = "sqlite"
)

// コンテンツの取得元
const (
	ContentEmbedded = "embedded"
	ContentHTTP     = "http"
)

// IDトークンの検証方式
const (
	VerifierNone     = "none"
	VerifierFirebase = "firebase"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort string
	BaseURL    string
	LogLevel   string

	// Cookie
	CookieSecure       bool
	CookieDomain       string
	ClientCookieMaxAge int

	// CORS
	CORSAllowedOrigin string

	// Store
	StoreDriver    string
	DatabaseURL    string
	RedisURL       string
	RedisKeyPrefix string
	SQLitePath     string

	// PostgreSQL接続プール
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Content
	ContentSource       string
	ContentBaseURL      string
	ContentCapability   string
	ContentTimeout      time.Duration
	ContentMaxSize      int64
	BlockPrivateContent bool

	// Routing
	DefaultRoute      string
	HomeRoute         string
	DiscardStaleLoads bool

	// Identity
	IdentityVerifier    string
	FirebaseCredentials string

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitSignIn  int

	// Page
	PageIdleTTL      time.Duration
	PageReapInterval time.Duration

	// Cleanup
	KVRetentionDays int
	CleanupInterval time.Duration
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合や、列挙値が不正な場合はまとめてエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string
	var invalid []string

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	// Store: ドライバーごとに必要な接続先が変わる
	cfg.StoreDriver = strings.ToLower(getEnvString("STORE_DRIVER", StoreMemory))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.SQLitePath = getEnvString("SQLITE_PATH", "appshell.db")
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	cfg.DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	switch cfg.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StoreRedis:
		if cfg.RedisURL == "" {
			missing = append(missing, "REDIS_URL")
		}
	default:
		invalid = append(invalid, "STORE_DRIVER="+cfg.StoreDriver)
	}

	// Content
	cfg.ContentSource = strings.ToLower(getEnvString("CONTENT_SOURCE", ContentEmbedded))
	cfg.ContentBaseURL = os.Getenv("CONTENT_BASE_URL")
	switch cfg.ContentSource {
	case ContentEmbedded:
	case ContentHTTP:
		if cfg.ContentBaseURL == "" {
			missing = append(missing, "CONTENT_BASE_URL")
		}
	default:
		invalid = append(invalid, "CONTENT_SOURCE="+cfg.ContentSource)
	}

	cfg.ContentCapability = strings.ToLower(getEnvString("CONTENT_CAPABILITY", "sandboxed"))
	if cfg.ContentCapability != "sandboxed" && cfg.ContentCapability != "trusted" {
		invalid = append(invalid, "CONTENT_CAPABILITY="+cfg.ContentCapability)
	}

	// Identity
	cfg.IdentityVerifier = strings.ToLower(getEnvString("IDENTITY_VERIFIER", VerifierNone))
	cfg.FirebaseCredentials = os.Getenv("FIREBASE_CREDENTIALS")
	switch cfg.IdentityVerifier {
	case VerifierNone:
	case VerifierFirebase:
		if cfg.FirebaseCredentials == "" {
			missing = append(missing, "FIREBASE_CREDENTIALS")
		}
	default:
		invalid = append(invalid, "IDENTITY_VERIFIER="+cfg.IdentityVerifier)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid environment variables: %v", invalid)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.ClientCookieMaxAge = getEnvInt("CLIENT_COOKIE_MAX_AGE", 365*24*60*60)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.RedisKeyPrefix = getEnvString("REDIS_KEY_PREFIX", "appshell:")
	cfg.ContentTimeout = getEnvDuration("CONTENT_TIMEOUT", 10*time.Second)
	cfg.ContentMaxSize = getEnvInt64("CONTENT_MAX_SIZE", 2*1024*1024)
	cfg.BlockPrivateContent = getEnvBool("BLOCK_PRIVATE_CONTENT", true)
	cfg.DefaultRoute = getEnvString("DEFAULT_ROUTE", "dashboard")
	cfg.HomeRoute = getEnvString("HOME_ROUTE", "storefronts")
	cfg.DiscardStaleLoads = getEnvBool("DISCARD_STALE_LOADS", true)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSignIn = getEnvInt("RATE_LIMIT_SIGN_IN", 10)
	cfg.PageIdleTTL = getEnvDuration("PAGE_IDLE_TTL", 30*time.Minute)
	cfg.PageReapInterval = getEnvDuration("PAGE_REAP_INTERVAL", time.Minute)
	cfg.KVRetentionDays = getEnvInt("KV_RETENTION_DAYS", 180)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
