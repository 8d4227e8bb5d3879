package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"mikradb/internal/housekeeping"
	"mikradb/pkg/cache"
	"mikradb/pkg/config"
	"mikradb/pkg/shared"
	"mikradb/pkg/source"
	"mikradb/pkg/store"
	"mikradb/pkg/tracker"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	cache   *cache.Cache
	tracker *tracker.Tracker
	shared  *shared.Client // nil when no shared store is configured
	loc     *time.Location

	srv *http.Server
}

// New initializes resources that do not require a running context: the
// pebble store, the source and shared clients, the cache and the tracker.
// It does not start housekeeping or the HTTP server; call Run for those.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	// validate effective config early and fail fast
	if err := validateConfig(eff); err != nil {
		return nil, err
	}
	cfg := eff.Config

	// runtime keys
	runtimeCfg := &config.RuntimeConfig{
		BackendKeys: map[string]struct{}{},
		AdminKeys:   map[string]struct{}{},
	}
	for _, k := range cfg.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
	}
	for _, k := range cfg.Security.APIKeys.Admin {
		runtimeCfg.AdminKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	loc := time.UTC
	if tz := cfg.Stats.Timezone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid stats.timezone %q: %w", tz, err)
		}
		loc = l
	}

	src := source.New(cfg.Source.BaseURL, source.Options{
		Timeout: cfg.Source.Timeout.Duration(),
		Retries: cfg.Source.Retries,
		RPS:     cfg.Source.RPS,
	})
	var sh *shared.Client
	if cfg.Shared.BaseURL != "" {
		sh = shared.New(cfg.Shared.BaseURL, cfg.Shared.APIKey, cfg.Shared.Timeout.Duration())
	}

	a := &App{
		eff:       eff,
		version:   version,
		commit:    commit,
		buildDate: buildDate,
		shared:    sh,
		loc:       loc,
		cache: cache.New(src, sh, cache.Options{
			MemorySize: cfg.Cache.MemorySize,
			MemoryTTL:  cfg.Cache.MemoryTTL.Duration(),
		}),
		tracker: tracker.New(sh, cfg.Tracker.SaveInterval.Duration(), loc),
	}
	return a, nil
}

// Run starts housekeeping (if enabled) and the HTTP server, and blocks until
// ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	stopHK, err := housekeeping.Start(ctx, a.eff)
	if err != nil {
		return err
	}
	defer stopHK()

	a.printBanner()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		a.shutdownHTTP()
		return nil
	case err := <-errCh:
		return err
	}
}

// shutdownHTTP drains in-flight requests with a short grace period.
func (a *App) shutdownHTTP() {
	if a.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.srv.Shutdown(ctx)
}
