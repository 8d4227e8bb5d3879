package app

import (
	"fmt"
	"os"
	"time"

	"mikradb/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services. Keep checks light
// and focused so callers can surface user-friendly errors.
func validateConfig(eff config.EffectiveConfigResult) error {
	if eff.DBPath == "" {
		return fmt.Errorf("database path is empty: set --db flag, MIKRADB_DB_PATH env, or server.db_path in config")
	}

	cfg := eff.Config
	if cfg.Source.BaseURL == "" {
		return fmt.Errorf("text source is not configured: set source.base_url or MIKRADB_SOURCE_URL")
	}

	// TLS cert/key presence check if one is set
	cert := cfg.Server.TLS.CertFile
	key := cfg.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	if tz := cfg.Stats.Timezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("invalid stats.timezone %q: %w", tz, err)
		}
	}

	if cfg.Stats.LeaderboardSize < 0 {
		return fmt.Errorf("stats.leaderboard_size must not be negative")
	}
	return nil
}
