// Package config provides configuration loading for the SSI bridge. It
// handles environment variable parsing and provides default values for all
// optional settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/trustmesh/ssi-bridge/internal/ledger"
)

// init loads environment variables from .env files during package
// initialization. godotenv.Load() does not override already-set variables,
// preserving OS env > .env precedence. Production deployments rely solely on
// system environment variables.
func init() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}
	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env.local file: %v\n", err)
		}
	}
}

// Config captures environment-driven settings for the bridge.
type Config struct {
	Env            string        // Deployment environment (dev, staging, prod)
	Address        string        // HTTP server address (e.g. ":8080")
	MetricsAddress string        // Metrics server address (e.g. ":9090")
	ServerSecret   string        // Secret signing session tokens; required
	SessionTTL     time.Duration // Duration before session tokens expire
	BitmapTag      string        // Prefix deriving revocation service ids
	Ledger         ledger.Config // Ledger node endpoints
}

// Default configuration values used when environment variables are not set.
const (
	defaultAddress        = ":8080"
	defaultMetricsAddress = ":9090"
	defaultSessionTTL     = 24 * time.Hour
	defaultBitmapTag      = "revocation"
	defaultNetwork        = "mainnet"
)

// Load reads environment variables and produces a Config suitable for wiring
// the service. Returns an error if required parameters are missing or
// invalid; the server secret is the only required parameter.
func Load() (Config, error) {
	cfg := Config{
		Env:            getEnv("BRIDGE_ENV", "dev"),
		Address:        getEnv("BRIDGE_HTTP_ADDR", defaultAddress),
		MetricsAddress: getEnv("BRIDGE_METRICS_ADDR", defaultMetricsAddress),
		BitmapTag:      getEnv("BRIDGE_BITMAP_TAG", defaultBitmapTag),
		SessionTTL:     defaultSessionTTL,
		Ledger: ledger.Config{
			PrimaryNode: getEnv("BRIDGE_LEDGER_NODE", ""),
			PermaNode:   getEnv("BRIDGE_LEDGER_PERMANODE", ""),
			Network:     getEnv("BRIDGE_LEDGER_NETWORK", defaultNetwork),
		},
	}

	secret, exists := os.LookupEnv("BRIDGE_SERVER_SECRET")
	if !exists || secret == "" {
		return Config{}, errors.New("BRIDGE_SERVER_SECRET is required")
	}
	cfg.ServerSecret = secret

	if ttl, exists := os.LookupEnv("BRIDGE_SESSION_TTL_SECONDS"); exists {
		d, err := parseSeconds(ttl)
		if err != nil {
			return Config{}, fmt.Errorf("invalid BRIDGE_SESSION_TTL_SECONDS: %w", err)
		}
		cfg.SessionTTL = d
	}

	return cfg, nil
}

// getEnv retrieves an environment variable value, returning a fallback if
// not set or empty.
func getEnv(key, fallback string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return fallback
}

// parseSeconds converts a string representation of seconds to a
// time.Duration. Returns an error if the value is not a positive integer.
func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if seconds <= 0 {
		return 0, errors.New("value must be > 0")
	}
	return time.Duration(seconds) * time.Second, nil
}
