// Package config loads runtime configuration from the process environment.
package config

import (
	"os"
	"strconv"
)

// Config controls where the durable event log lives and how the runtime
// authority is wired at startup.
type Config struct {
	// LogPath is the file path for the file-backed event log. Empty means
	// use the default per-user location.
	LogPath string

	// MemoryOnly forces an in-memory event log regardless of LogPath,
	// useful for tests and ephemeral deployments.
	MemoryOnly bool

	// PostgresDSN, if set, selects the SQL-backed event log instead of the
	// file-backed one.
	PostgresDSN string

	// DefaultPolicyBundleID is the policy bundle id the bootstrap command
	// writes into the metadata of the run it creates. The receipt and
	// replay builders do not read it: a run whose metadata lacks
	// policy_bundle_id gets "runtime.default".
	DefaultPolicyBundleID string

	// RedisAddr, if set, selects a distributed rate limiter backed by
	// Redis instead of the in-process local limiter.
	RedisAddr string

	RateLimitPerSecond float64
	RateLimitBurst     int
}

const (
	envLogPath        = "RUNTIME_LOG_PATH"
	envMemoryOnly     = "RUNTIME_MEMORY_ONLY"
	envPostgresDSN    = "RUNTIME_POSTGRES_DSN"
	envPolicyBundleID = "RUNTIME_POLICY_BUNDLE_ID"
	envRedisAddr      = "RUNTIME_REDIS_ADDR"
	envRateLimitRPS   = "RUNTIME_RATE_LIMIT_PER_SECOND"
	envRateLimitBurst = "RUNTIME_RATE_LIMIT_BURST"

	defaultPolicyBundleID = "runtime.default"
	defaultRateLimitRPS   = 50.0
	defaultRateLimitBurst = 100
)

const envProfilePath = "RUNTIME_PROFILE_PATH"

// Load reads Config from the environment, applying defaults for anything
// unset. If RUNTIME_PROFILE_PATH names a YAML deployment profile, its
// values seed the Config before individual RUNTIME_* env vars are applied,
// so an env var always wins over the profile.
func Load() Config {
	cfg := Config{
		DefaultPolicyBundleID: defaultPolicyBundleID,
		RateLimitPerSecond:    defaultRateLimitRPS,
		RateLimitBurst:        defaultRateLimitBurst,
	}

	if path := os.Getenv(envProfilePath); path != "" {
		if profile, err := LoadProfile(path); err == nil {
			applyProfile(&cfg, profile)
		}
	}

	if v := os.Getenv(envLogPath); v != "" {
		cfg.LogPath = v
	}
	if v := os.Getenv(envMemoryOnly); v != "" {
		cfg.MemoryOnly = parseBool(v, cfg.MemoryOnly)
	}
	if v := os.Getenv(envPostgresDSN); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv(envPolicyBundleID); v != "" {
		cfg.DefaultPolicyBundleID = v
	}
	if v := os.Getenv(envRedisAddr); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv(envRateLimitRPS); v != "" {
		cfg.RateLimitPerSecond = parseFloat(v, cfg.RateLimitPerSecond)
	}
	if v := os.Getenv(envRateLimitBurst); v != "" {
		cfg.RateLimitBurst = parseInt(v, cfg.RateLimitBurst)
	}

	return cfg
}

func applyProfile(cfg *Config, profile DeploymentProfile) {
	cfg.LogPath = profile.LogPath
	cfg.PostgresDSN = profile.PostgresDSN
	cfg.RedisAddr = profile.RedisAddr
	cfg.MemoryOnly = profile.Backend == "memory"
	if profile.RateLimitPerSecond > 0 {
		cfg.RateLimitPerSecond = profile.RateLimitPerSecond
	}
	if profile.RateLimitBurst > 0 {
		cfg.RateLimitBurst = profile.RateLimitBurst
	}
}

func parseBool(v string, fallback bool) bool {
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func parseFloat(v string, fallback float64) float64 {
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseInt(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
