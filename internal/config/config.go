package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "DRAFT_"
	envFileVar = "DRAFT_CONFIG"

	SourceOPGG    = "opgg"
	SourceGateway = "gateway"
)

type Config struct {
	Port           string `koanf:"port"`
	Environment    string `koanf:"environment"` // "development" or "production"
	RedisURL       string `koanf:"redis_url"`
	DatabaseURL    string `koanf:"database_url"`
	RiotAPIKey     string `koanf:"riot_api_key"`
	AllowedOrigins string `koanf:"allowed_origins"`
	TrustedProxies string `koanf:"trusted_proxies"`

	// StatsSource selects the tier list and build upstream: opgg or gateway.
	StatsSource string `koanf:"stats_source"`
	GatewayURL    string `koanf:"gateway_url"`
	GatewayAPIKey string `koanf:"gateway_api_key"`
	OPGGBaseURL   string `koanf:"opgg_base_url"`
	Headless      bool   `koanf:"headless"` // render op.gg pages with headless Chrome

	RiotBaseURL string `koanf:"riot_base_url"` // replaces every *.api.riotgames.com host when set
	DDragonURL  string `koanf:"ddragon_url"`

	DefaultRegion string `koanf:"default_region"`
	DefaultTier   string `koanf:"default_tier"`

	TierStatsTTL      time.Duration `koanf:"tier_stats_ttl"`
	BuildTTL          time.Duration `koanf:"build_ttl"`
	DDragonTTL        time.Duration `koanf:"ddragon_ttl"`
	SnapshotRetention time.Duration `koanf:"snapshot_retention"`
	UpstreamTimeout   time.Duration `koanf:"upstream_timeout"`
	ProfileTimeout    time.Duration `koanf:"profile_timeout"`

	MatchWindow    int     `koanf:"match_window"`
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:              "8080",
		Environment:       "development",
		AllowedOrigins:    "http://localhost:3000,http://localhost:5173",
		StatsSource:       SourceOPGG,
		OPGGBaseURL:       "https://op.gg",
		DDragonURL:        "https://ddragon.leagueoflegends.com",
		DefaultRegion:     "euw",
		DefaultTier:       "emerald_plus",
		TierStatsTTL:      6 * time.Hour,
		BuildTTL:          12 * time.Hour,
		DDragonTTL:        24 * time.Hour,
		SnapshotRetention: 7 * 24 * time.Hour,
		UpstreamTimeout:   20 * time.Second,
		ProfileTimeout:    5 * time.Second,
		MatchWindow:       20,
		RateLimitRPS:      10,
		RateLimitBurst:    20,
	}
}

// Load layers defaults, an optional YAML file named by DRAFT_CONFIG and
// DRAFT_* environment variables, in increasing precedence. A .env file in
// the working directory is read first so its values reach the env layer.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] .env file not found: %v", err)
	}

	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// DRAFT_TIER_STATS_TTL -> tier_stats_ttl
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}

	cfg := *Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	c.StatsSource = strings.ToLower(strings.TrimSpace(c.StatsSource))
	switch c.StatsSource {
	case SourceOPGG:
		if c.OPGGBaseURL == "" {
			return fmt.Errorf("opgg_base_url is required when stats_source=%s", SourceOPGG)
		}
	case SourceGateway:
		if c.GatewayURL == "" {
			return fmt.Errorf("gateway_url is required when stats_source=%s", SourceGateway)
		}
	default:
		return fmt.Errorf("unknown stats_source %q (want %s or %s)", c.StatsSource, SourceOPGG, SourceGateway)
	}

	if c.Port == "" {
		return fmt.Errorf("port must not be empty")
	}
	if c.TierStatsTTL <= 0 || c.BuildTTL <= 0 || c.DDragonTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.UpstreamTimeout <= 0 || c.ProfileTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.MatchWindow < 1 || c.MatchWindow > 100 {
		return fmt.Errorf("match_window must be within 1..100, got %d", c.MatchWindow)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Origins splits AllowedOrigins into a list.
func (c *Config) Origins() []string {
	return splitList(c.AllowedOrigins)
}

// Proxies splits TrustedProxies into a list.
func (c *Config) Proxies() []string {
	return splitList(c.TrustedProxies)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
