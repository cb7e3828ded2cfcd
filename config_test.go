/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"

	"github.com/Seednode/mysteryathlete/round"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		bind:              "127.0.0.1",
		copiedBannerDelay: time.Second,
		dbPath:            "mysteryathlete.db",
		guessBurst:        5,
		guessRate:         2,
		photoReturnDelay:  time.Millisecond,
		playerTimeout:     time.Minute,
		port:              8080,
		store:             "memory",
		submitTimeout:     time.Second,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"tls cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, "--tls-key"},
		{"port zero", func(c *Config) { c.port = 0 }, "invalid port"},
		{"port too high", func(c *Config) { c.port = 70000 }, "invalid port"},
		{"unknown store", func(c *Config) { c.store = "etcd" }, "invalid store"},
		{"store is case insensitive", func(c *Config) { c.store = "SQLite" }, ""},
		{"sqlite without path", func(c *Config) { c.store = "sqlite"; c.dbPath = "" }, "--db-path"},
		{"postgres without url", func(c *Config) { c.store = "postgres" }, "--db-url"},
		{"mysql with url", func(c *Config) { c.store = "mysql"; c.dbURL = "user:pass@/db" }, ""},
		{"redis without url", func(c *Config) { c.store = "redis" }, "--redis-url"},
		{"catalog and upstream", func(c *Config) { c.catalog = "rounds"; c.upstream = "http://example.com" }, "mutually exclusive"},
		{"upstream not http", func(c *Config) { c.upstream = "ftp://example.com" }, "invalid upstream"},
		{"unknown policy", func(c *Config) { c.closeGuessPolicy = "three-strike" }, "close guess policy"},
		{"zero rate", func(c *Config) { c.guessRate = 0 }, "rate limit"},
		{"zero burst", func(c *Config) { c.guessBurst = 0 }, "rate limit"},
		{"negative photo delay", func(c *Config) { c.photoReturnDelay = -time.Second }, "--photo-return-delay"},
		{"zero submit timeout", func(c *Config) { c.submitTimeout = 0 }, "--submit-timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateSetsPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.closeGuessPolicy = "Single-Strike"

	require.NoError(t, cfg.validate())
	assert.Equal(t, round.PolicySingleStrike, cfg.policy)

	cfg.closeGuessPolicy = ""
	require.NoError(t, cfg.validate())
	assert.Equal(t, round.PolicyTwoStrike, cfg.policy)
}

func TestScheme(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestNewCmdDefaults(t *testing.T) {
	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, 8080, cfg.port)
	assert.Equal(t, "memory", cfg.store)
	assert.Equal(t, string(round.PolicyTwoStrike), cfg.closeGuessPolicy)
	assert.Equal(t, 500*time.Millisecond, cfg.photoReturnDelay)
	assert.Equal(t, 10*time.Minute, cfg.playerTimeout)
	assert.NoError(t, cfg.validate())
}

func TestNewCmdReadsEnvironment(t *testing.T) {
	t.Setenv("MYSTERYATHLETE_PORT", "9090")
	t.Setenv("MYSTERYATHLETE_STORE", "sqlite")
	t.Setenv("MYSTERYATHLETE_CLOSE_GUESS_POLICY", "single-strike")
	t.Setenv("MYSTERYATHLETE_PHOTO_RETURN_DELAY", "750ms")
	t.Setenv("MYSTERYATHLETE_VERBOSE", "true")

	cfg := &Config{}
	newCmd(cfg)

	assert.Equal(t, 9090, cfg.port)
	assert.Equal(t, "sqlite", cfg.store)
	assert.Equal(t, "single-strike", cfg.closeGuessPolicy)
	assert.Equal(t, 750*time.Millisecond, cfg.photoReturnDelay)
	assert.True(t, cfg.verbose)
}

func TestNewCmdFlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("MYSTERYATHLETE_PORT", "9090")

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.Flags().Parse([]string{"--port", "7070", "--guess_rate", "4"}))

	assert.Equal(t, 7070, cfg.port)
	assert.Equal(t, 4.0, cfg.guessRate)
}
