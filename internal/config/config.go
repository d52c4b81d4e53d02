package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the booking gateway.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Upstream logistics platform API.
	UpstreamBaseURL string
	UpstreamToken   string
	UpstreamTimeout time.Duration

	// Geocoding service (search / reverse / place details).
	GeocodeBaseURL string
	GeocodeTimeout time.Duration

	// Location search behaviour.
	SearchMinLength int
	SearchDebounce  time.Duration

	// Current-location cache. Two fixes within EpsilonDeg degrees on both
	// axes are treated as the same place and reuse the cached address.
	CacheEpsilonDeg float64
	CacheTTL        time.Duration

	RedisAddr     string
	RedisPassword string
	RedisCacheKey string

	KafkaBrokers     []string
	KafkaOrderTopic  string
	KafkaStatusTopic string
	KafkaGroup       string

	// Push provider fallback for order-status events when the client's
	// websocket is gone. Empty disables the HTTP fallback.
	PushEndpoint string
	PushKey      string

	PGDSN string

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:         ":8080",
		ReadTimeout:      5 * time.Second,
		WriteTimeout:     10 * time.Second,
		IdleTimeout:      120 * time.Second,
		ShutdownTimeout:  15 * time.Second,
		UpstreamTimeout:  10 * time.Second,
		GeocodeTimeout:   5 * time.Second,
		SearchMinLength:  2,
		SearchDebounce:   300 * time.Millisecond,
		CacheEpsilonDeg:  1e-4,
		CacheTTL:         24 * time.Hour,
		RedisCacheKey:    "booking:current_location",
		KafkaOrderTopic:  "booking-events",
		KafkaStatusTopic: "order-status",
		KafkaGroup:       "booking-gateway",
		LogLevel:         "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	setStringFromEnv(&cfg.UpstreamBaseURL, "UPSTREAM_BASE_URL")
	cfg.UpstreamToken = os.Getenv("UPSTREAM_TOKEN")
	setDurationFromEnv(&cfg.UpstreamTimeout, "UPSTREAM_TIMEOUT", &errs)

	setStringFromEnv(&cfg.GeocodeBaseURL, "GEOCODE_BASE_URL")
	setDurationFromEnv(&cfg.GeocodeTimeout, "GEOCODE_TIMEOUT", &errs)

	setIntFromEnv(&cfg.SearchMinLength, "SEARCH_MIN_LENGTH", &errs)
	setDurationFromEnv(&cfg.SearchDebounce, "SEARCH_DEBOUNCE", &errs)

	setFloatFromEnv(&cfg.CacheEpsilonDeg, "CACHE_EPSILON_DEG", &errs)
	setDurationFromEnv(&cfg.CacheTTL, "CACHE_TTL", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisCacheKey, "REDIS_CACHE_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaOrderTopic, "KAFKA_ORDER_TOPIC")
	setStringFromEnv(&cfg.KafkaStatusTopic, "KAFKA_STATUS_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")

	cfg.PushEndpoint = strings.TrimSpace(os.Getenv("PUSH_ENDPOINT"))
	cfg.PushKey = os.Getenv("PUSH_KEY")

	cfg.PGDSN = os.Getenv("PG_DSN")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.UpstreamBaseURL == "" {
		errs = append(errs, fmt.Errorf("UPSTREAM_BASE_URL is required"))
	}
	if cfg.GeocodeBaseURL == "" {
		errs = append(errs, fmt.Errorf("GEOCODE_BASE_URL is required"))
	}
	if cfg.SearchMinLength <= 0 {
		errs = append(errs, fmt.Errorf("SEARCH_MIN_LENGTH must be > 0"))
	}
	if cfg.CacheEpsilonDeg <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_EPSILON_DEG must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
