package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type PostgresCfg struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DB       string
	SSLMode  string
	MaxConns int
}

// DSN prefers DATABASE_URL and otherwise assembles one from the PG_* parts.
func (p PostgresCfg) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	dsn := "postgres://" + p.User
	if p.Password != "" {
		dsn += ":" + p.Password
	}
	dsn += "@" + p.Host + ":" + p.Port + "/" + p.DB + "?sslmode=" + p.SSLMode
	if p.MaxConns > 0 {
		dsn += "&pool_max_conns=" + strconv.Itoa(p.MaxConns)
	}
	return dsn
}

type CacheCfg struct {
	Enabled   bool
	RedisAddr string
	TTL       time.Duration
	OpTimeout time.Duration
	H3Res     int
}

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers []string
	GroupID string
}

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool
	LogSampleN int

	GeocoderURL      string
	GeocoderTimeout  time.Duration
	GeocodeCacheSize int

	StoreDriver  string
	StoreTimeout time.Duration
	Postgres     PostgresCfg
	SQLitePath   string

	SearchRadius  float64
	ProximityMode string
	Operators     string

	Cache        CacheCfg
	Invalidation InvalidationCfg

	MetricsEnabled bool
	MetricsAddr    string
	MetricsPath    string
}

// LoadDotEnv reads .env files if present. Missing files are skipped; a file
// that exists but cannot be parsed is an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

func FromEnv() Config {
	res := getint("CACHE_H3_RES", 7)
	if res < 0 || res > 15 {
		res = 7
	}

	return Config{
		Addr:       getenv("ADDR", ":8080"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		LogSampleN: getint("LOG_SAMPLE_N", 0),

		GeocoderURL:      getenv("GEOCODER_URL", "https://api-adresse.data.gouv.fr"),
		GeocoderTimeout:  getduration("GEOCODER_TIMEOUT", 5*time.Second),
		GeocodeCacheSize: getint("GEOCODE_CACHE_SIZE", 4096),

		StoreDriver:  strings.ToLower(getenv("STORE_DRIVER", "postgres")),
		StoreTimeout: getduration("STORE_TIMEOUT", 3*time.Second),
		Postgres: PostgresCfg{
			URL:      getenv("DATABASE_URL", ""),
			Host:     getenv("PG_HOST", "localhost"),
			Port:     getenv("PG_PORT", "5432"),
			User:     getenv("PG_USER", "postgres"),
			Password: getenv("PG_PASSWORD", ""),
			DB:       getenv("PG_DB", "network_db"),
			SSLMode:  getenv("PG_SSLMODE", "disable"),
			MaxConns: getint("PG_MAX_CONNS", 16),
		},
		SQLitePath: getenv("SQLITE_PATH", "coverage.db"),

		SearchRadius:  getfloat("SEARCH_RADIUS_M", 3000),
		ProximityMode: getenv("PROXIMITY_MODE", "circular"),
		Operators:     getenv("OPERATORS", ""),

		Cache: CacheCfg{
			Enabled:   getbool("CACHE_ENABLED", false),
			RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
			TTL:       getduration("CACHE_TTL", 10*time.Minute),
			OpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
			H3Res:     res,
		},
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "coverage-invalidation"),
			Brokers: splitCSV(getenv("KAFKA_BROKERS", "localhost:9092")),
			GroupID: getenv("KAFKA_GROUP_ID", "coverage-cache-invalidator"),
		},

		MetricsEnabled: getbool("METRICS_ENABLED", false),
		MetricsAddr:    getenv("METRICS_ADDR", ":9090"),
		MetricsPath:    getenv("METRICS_PATH", "/metrics"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
