// Package config loads service configuration. Values are layered: built-in
// defaults, then the YAML file, then variables from .env files, then the
// process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/resource"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Auth      AuthConfig      `yaml:"auth"`
	Ledgers   LedgersConfig   `yaml:"ledgers"`
	Setup     SetupConfig     `yaml:"setup"`
	Crafting  CraftingConfig  `yaml:"crafting"`
	Market    MarketConfig    `yaml:"market"`
	Events    EventsConfig    `yaml:"events"`
	Supply    SupplyConfig    `yaml:"supply"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Audit     AuditConfig     `yaml:"audit"`
}

type ServerConfig struct {
	Host         string        `yaml:"host" env:"SERVER_HOST"`
	Port         int           `yaml:"port" env:"SERVER_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	// CORSOrigins lists allowed browser origins; "*" allows any.
	CORSOrigins []string `yaml:"cors_origins" env:"SERVER_CORS_ORIGINS"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

type DatabaseConfig struct {
	Driver          string `yaml:"driver" env:"DATABASE_DRIVER"`
	DSN             string `yaml:"dsn" env:"DATABASE_DSN"`
	MaxOpenConns    int    `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"` // seconds
}

type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	Output     string `yaml:"output" env:"LOG_OUTPUT"`
	FilePrefix string `yaml:"file_prefix" env:"LOG_FILE_PREFIX"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"AUTH_JWT_SECRET"`
	Issuer    string        `yaml:"issuer" env:"AUTH_ISSUER"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"AUTH_TOKEN_TTL"`
}

type LedgersConfig struct {
	// Owner administers the authorization registry of every ledger.
	Owner string `yaml:"owner" env:"LEDGERS_OWNER"`
}

type SetupConfig struct {
	AutoWire bool `yaml:"auto_wire" env:"SETUP_AUTO_WIRE"`
}

type CraftingConfig struct {
	// Weights maps resource names to relative draw weights. Empty means
	// uniform.
	Weights        map[string]uint64 `yaml:"weights"`
	SearchCooldown time.Duration     `yaml:"search_cooldown" env:"CRAFTING_SEARCH_COOLDOWN"`
	RecipesFile    string            `yaml:"recipes_file" env:"CRAFTING_RECIPES_FILE"`
}

type MarketConfig struct {
	FeeBps        uint64 `yaml:"fee_bps" env:"MARKET_FEE_BPS"`
	FeeRecipient  string `yaml:"fee_recipient" env:"MARKET_FEE_RECIPIENT"`
	RewardPerSale uint64 `yaml:"reward_per_sale" env:"MARKET_REWARD_PER_SALE"`
}

type EventsConfig struct {
	RedisURL string `yaml:"redis_url" env:"EVENTS_REDIS_URL"`
	Channel  string `yaml:"channel" env:"EVENTS_CHANNEL"`
}

type SupplyConfig struct {
	Schedule string `yaml:"schedule" env:"SUPPLY_SCHEDULE"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"RATE_LIMIT_RPS"`
	Burst             int     `yaml:"burst" env:"RATE_LIMIT_BURST"`
}

type AuditConfig struct {
	File string `yaml:"file" env:"AUDIT_FILE"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{Driver: "memory"},
		Logging:  LoggingConfig{Level: "info", Format: "text", Output: "stdout", FilePrefix: "kozak"},
		Auth:     AuthConfig{Issuer: "kozak-economy", TokenTTL: 24 * time.Hour},
		Setup:    SetupConfig{AutoWire: true},
		Events:   EventsConfig{Channel: "kozak.events"},
		Supply:   SupplyConfig{Schedule: "@every 30s"},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		},
	}
}

// Load builds the configuration from path (optional), .env files and the
// environment, then validates it.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := loadDotEnv(envFiles); err != nil {
		return nil, err
	}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads the given files (".env" when none), skipping missing
// ones. Variables already in the environment win.
func loadDotEnv(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Database.Driver) {
	case "memory":
	case "sqlite", "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			errs = append(errs, fmt.Errorf("database.dsn is required for driver %s", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be memory, sqlite or postgres", c.Database.Driver))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if _, err := c.OwnerAddress(); err != nil {
		errs = append(errs, fmt.Errorf("ledgers.owner: %w", err))
	}
	if c.Market.FeeBps > 10000 {
		errs = append(errs, fmt.Errorf("market.fee_bps %d exceeds 10000", c.Market.FeeBps))
	}
	if c.Market.FeeBps > 0 {
		if _, err := address.Parse(c.Market.FeeRecipient); err != nil {
			errs = append(errs, fmt.Errorf("market.fee_recipient: %w", err))
		}
	}
	if _, err := c.ResourceWeights(); err != nil {
		errs = append(errs, err)
	}
	if c.Crafting.SearchCooldown < 0 {
		errs = append(errs, errors.New("crafting.search_cooldown must not be negative"))
	}
	return errors.Join(errs...)
}

// OwnerAddress parses the ledger owner.
func (c *Config) OwnerAddress() (address.Address, error) {
	return address.Parse(c.Ledgers.Owner)
}

// FeeRecipientAddress parses the fee recipient; empty yields the zero value.
func (c *Config) FeeRecipientAddress() (address.Address, error) {
	if strings.TrimSpace(c.Market.FeeRecipient) == "" {
		return "", nil
	}
	return address.Parse(c.Market.FeeRecipient)
}

// ResourceWeights converts the named weight table.
func (c *Config) ResourceWeights() (map[resource.Type]uint64, error) {
	if len(c.Crafting.Weights) == 0 {
		return nil, nil
	}
	out := make(map[resource.Type]uint64, len(c.Crafting.Weights))
	var total uint64
	for name, w := range c.Crafting.Weights {
		rt, err := resource.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("crafting.weights: %w", err)
		}
		out[rt] = w
		total += w
	}
	if total == 0 {
		return nil, errors.New("crafting.weights: at least one weight must be positive")
	}
	return out, nil
}
