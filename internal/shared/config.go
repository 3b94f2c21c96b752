package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	Predictor     string // local|remote
	PredictAPIURL string
	PredictAPIRPS int
	// PredictAttempts is how many times a remote 429/gateway error is tried.
	PredictAttempts int
	PredictTimeout  time.Duration

	PricingTablesPath string
	JitterSeed        int64
	SimulatedDelay    time.Duration

	Workers     int
	CacheTTL    time.Duration
	SessionTTL  time.Duration
	CORSOrigins []string
}

// Load reads the environment. A .env file in the working directory, when
// present, fills variables that are not already set.
func Load() Config {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded .env")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("invalid integer, using default")
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8000"),
		MetricsAddr: env("METRICS_ADDR", ""),
		MySQLDSN:    env("MYSQL_DSN", ""),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),

		Predictor:       strings.ToLower(env("PREDICTOR", "local")),
		PredictAPIURL:   env("PREDICT_API_URL", "http://localhost:8000"),
		PredictAPIRPS:   atoi("PREDICT_API_RPS", 5),
		PredictAttempts: atoi("PREDICT_API_ATTEMPTS", 1),
		PredictTimeout:  time.Duration(atoi("PREDICT_TIMEOUT_SECONDS", 10)) * time.Second,

		PricingTablesPath: env("PRICING_TABLES_PATH", ""),
		JitterSeed:        int64(atoi("JITTER_SEED", 0)),
		SimulatedDelay:    time.Duration(atoi("SIMULATED_DELAY_MS", 1000)) * time.Millisecond,

		Workers:    atoi("PREDICT_WORKERS", 4),
		CacheTTL:   time.Duration(atoi("CACHE_TTL_SECONDS", 0)) * time.Second,
		SessionTTL: time.Duration(atoi("SESSION_TTL_SECONDS", 1800)) * time.Second,
		CORSOrigins: splitList(env("CORS_ALLOWED_ORIGINS",
			"http://localhost:3000,http://127.0.0.1:3000,http://localhost:5173,http://127.0.0.1:5173")),
	}
	if c.Predictor != "local" && c.Predictor != "remote" {
		log.Warn().Str("predictor", c.Predictor).Msg("unknown PREDICTOR, using local")
		c.Predictor = "local"
	}
	if c.MySQLDSN == "" {
		log.Warn().Msg("MYSQL_DSN is empty; prediction history disabled")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
