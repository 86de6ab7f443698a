package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/kozak_economy/internal/app/domain/address"
	"github.com/R3E-Network/kozak_economy/internal/app/domain/resource"
)

var ownerHex = address.Derive("owner").String()

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadLayersFileThenEnvironment(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  port: 9090
auth:
  jwt_secret: file-secret
ledgers:
  owner: `+ownerHex+`
crafting:
  search_cooldown: 2s
  weights:
    wood: 3
    crystal: 1
market:
  fee_bps: 250
  fee_recipient: `+ownerHex+`
`)
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("AUTH_JWT_SECRET", "env-secret")

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port, "environment overrides the file")
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Second, cfg.Crafting.SearchCooldown)
	assert.Equal(t, uint64(250), cfg.Market.FeeBps)
	assert.Equal(t, "memory", cfg.Database.Driver, "defaults survive")
	assert.True(t, cfg.Setup.AutoWire)

	weights, err := cfg.ResourceWeights()
	require.NoError(t, err)
	assert.Equal(t, map[resource.Type]uint64{resource.Wood: 3, resource.Crystal: 1}, weights)
}

func TestLoadReadsDotEnv(t *testing.T) {
	env := writeFile(t, ".env", "AUTH_JWT_SECRET=dotenv-secret\nLEDGERS_OWNER="+ownerHex+"\n")
	os.Unsetenv("AUTH_JWT_SECRET")
	os.Unsetenv("LEDGERS_OWNER")
	t.Cleanup(func() {
		os.Unsetenv("AUTH_JWT_SECRET")
		os.Unsetenv("LEDGERS_OWNER")
	})

	cfg, err := Load("", env)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-secret", cfg.Auth.JWTSecret)
	owner, err := cfg.OwnerAddress()
	require.NoError(t, err)
	assert.Equal(t, address.Derive("owner"), owner)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Auth.JWTSecret = "s"
		cfg.Ledgers.Owner = ownerHex
		return cfg
	}
	require.NoError(t, base().Validate())

	cases := map[string]func(*Config){
		"missing secret":     func(c *Config) { c.Auth.JWTSecret = "" },
		"bad owner":          func(c *Config) { c.Ledgers.Owner = "not-an-address" },
		"unknown driver":     func(c *Config) { c.Database.Driver = "mongo" },
		"sqlite without dsn": func(c *Config) { c.Database.Driver = "sqlite" },
		"fee too high":       func(c *Config) { c.Market.FeeBps = 10001 },
		"fee no recipient":   func(c *Config) { c.Market.FeeBps = 10 },
		"unknown weight":     func(c *Config) { c.Crafting.Weights = map[string]uint64{"mithril": 1} },
		"zero weights":       func(c *Config) { c.Crafting.Weights = map[string]uint64{"wood": 0} },
		"bad port":           func(c *Config) { c.Server.Port = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
