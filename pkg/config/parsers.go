package config

import (
	"flag"
	"os"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// EffectiveConfigResult is the single merged view of flags, config file and
// environment the rest of the server consumes.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "config", or "env"
}

// ParseConfigFlags parses command-line flags and returns them as a Flags struct.
func ParseConfigFlags() Flags {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}
}

// ResolveConfigPath prefers an explicitly set flag, then the env var, then
// the flag default.
func ResolveConfigPath(flagVal string, flagSet bool) string {
	if flagSet {
		return flagVal
	}
	if v := os.Getenv("MIKRADB_CONFIG"); v != "" {
		return v
	}
	return flagVal
}

// LoadEffective merges config file + env + flags with precedence
// flags > config file > env, and returns the effective result.
func LoadEffective(flags Flags) (EffectiveConfigResult, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := Load(cfgPath)
	fromFile := err == nil
	if err != nil {
		if !os.IsNotExist(err) {
			return EffectiveConfigResult{}, err
		}
		cfg = &Config{}
	}
	envUsed := ApplyEnvOverrides(cfg)

	eff := EffectiveConfigResult{Config: cfg}
	switch {
	case fromFile:
		eff.Source = "config"
	case envUsed:
		eff.Source = "env"
	default:
		eff.Source = "flags"
	}

	eff.Addr = cfg.Addr()
	if flags.Set["addr"] {
		eff.Addr = flags.Addr
		eff.Source = "flags"
	}
	eff.DBPath = cfg.Server.DBPath
	if eff.DBPath == "" || flags.Set["db"] {
		eff.DBPath = flags.DB
	}
	return eff, nil
}
