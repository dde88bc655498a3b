package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

type Config struct {
	Env      string
	Port     string
	LogLevel string

	RedisURL  string
	RedisPass string
	RedisDB   int

	JWTSecret    string
	TicketSecret string
	TicketTTL    time.Duration

	DatabasePath  string
	StartingChips int64
	// SeedClients are "username" or "username:permission" entries created
	// at startup if missing.
	SeedClients []string

	BusDriver string
	NATSURL   string

	SweepInterval time.Duration
	DeckCount     int

	RouletteTakingBets time.Duration
	RouletteNoMoreBets time.Duration
	RouletteSpinning   time.Duration
	RouletteTick       time.Duration

	TicketRateLimit  int
	TicketRateWindow time.Duration
}

const (
	BusMemory = "memory"
	BusRedis  = "redis"
	BusNATS   = "nats"
)

var defaults = map[string]any{
	"APP_ENV":               "development",
	"PORT":                  "8080",
	"LOG_LEVEL":             "info",
	"REDIS_URL":             "localhost:6379",
	"REDIS_PASSWORD":        "",
	"REDIS_DB":              0,
	"JWT_SECRET":            "",
	"TICKET_SECRET":         "",
	"TICKET_TTL":            30 * time.Second,
	"DATABASE_PATH":         "chatsino.db",
	"STARTING_CHIPS":        1000,
	"SEED_CLIENTS":          "",
	"BUS_DRIVER":            BusRedis,
	"NATS_URL":              "nats://localhost:4222",
	"SWEEP_INTERVAL":        30 * time.Second,
	"DECK_COUNT":            6,
	"ROULETTE_TAKING_BETS":  15 * time.Minute,
	"ROULETTE_NO_MORE_BETS": 8 * time.Second,
	"ROULETTE_SPINNING":     5 * time.Second,
	"ROULETTE_TICK":         time.Second,
	"TICKET_RATE_LIMIT":     10,
	"TICKET_RATE_WINDOW":    time.Minute,
}

// Load reads the process environment, plus CONFIG_FILE when set. main calls
// godotenv.Load first so a local .env file fills in anything not already
// exported.
func Load() (*Config, error) {
	v := viper.New()
	for key, def := range defaults {
		v.SetDefault(key, def)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Env:      v.GetString("APP_ENV"),
		Port:     v.GetString("PORT"),
		LogLevel: v.GetString("LOG_LEVEL"),

		RedisURL:  v.GetString("REDIS_URL"),
		RedisPass: v.GetString("REDIS_PASSWORD"),

		JWTSecret:    v.GetString("JWT_SECRET"),
		TicketSecret: v.GetString("TICKET_SECRET"),

		DatabasePath: v.GetString("DATABASE_PATH"),
		SeedClients:  splitList(v.GetString("SEED_CLIENTS")),

		BusDriver: v.GetString("BUS_DRIVER"),
		NATSURL:   v.GetString("NATS_URL"),
	}

	ints := []struct {
		key  string
		dest *int
	}{
		{"REDIS_DB", &cfg.RedisDB},
		{"DECK_COUNT", &cfg.DeckCount},
		{"TICKET_RATE_LIMIT", &cfg.TicketRateLimit},
	}
	for _, i := range ints {
		n, err := cast.ToIntE(v.Get(i.key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", i.key, err)
		}
		*i.dest = n
	}
	chips, err := cast.ToInt64E(v.Get("STARTING_CHIPS"))
	if err != nil {
		return nil, fmt.Errorf("invalid STARTING_CHIPS: %w", err)
	}
	cfg.StartingChips = chips

	durations := []struct {
		key  string
		dest *time.Duration
	}{
		{"TICKET_TTL", &cfg.TicketTTL},
		{"TICKET_RATE_WINDOW", &cfg.TicketRateWindow},
		{"SWEEP_INTERVAL", &cfg.SweepInterval},
		{"ROULETTE_TAKING_BETS", &cfg.RouletteTakingBets},
		{"ROULETTE_NO_MORE_BETS", &cfg.RouletteNoMoreBets},
		{"ROULETTE_SPINNING", &cfg.RouletteSpinning},
		{"ROULETTE_TICK", &cfg.RouletteTick},
	}
	for _, d := range durations {
		val, err := cast.ToDurationE(v.Get(d.key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.dest = val
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.TicketSecret) != 32 {
		return fmt.Errorf("TICKET_SECRET must be exactly 32 bytes, got %d", len(c.TicketSecret))
	}
	switch c.BusDriver {
	case BusMemory, BusRedis, BusNATS:
	default:
		return fmt.Errorf("unknown BUS_DRIVER %q", c.BusDriver)
	}
	if c.DeckCount < 1 {
		return fmt.Errorf("DECK_COUNT must be positive")
	}
	if c.TicketRateLimit < 1 {
		return fmt.Errorf("TICKET_RATE_LIMIT must be positive")
	}
	if c.SweepInterval <= 0 || c.TicketTTL <= 0 || c.RouletteTick <= 0 || c.TicketRateWindow <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
