package banner

import (
	"fmt"

	"mikradb/pkg/config"
)

const banner = `
███╗   ███╗██╗██╗  ██╗██████╗  █████╗ ██████╗ ██████╗
████╗ ████║██║██║ ██╔╝██╔══██╗██╔══██╗██╔══██╗██╔══██╗
██╔████╔██║██║█████╔╝ ██████╔╝███████║██║  ██║██████╔╝
██║╚██╔╝██║██║██╔═██╗ ██╔══██╗██╔══██║██║  ██║██╔══██╗
██║ ╚═╝ ██║██║██║  ██╗██║  ██║██║  ██║██████╔╝██████╔╝
╚═╝     ╚═╝╚═╝╚═╝  ╚═╝╚═╝  ╚═╝╚═╝  ╚═╝╚═════╝ ╚═════╝
`

// PrintWithEff prints the startup banner with the effective config so a
// glance at the log tells you what the server will actually do.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", eff.Addr)
	fmt.Printf("DB Path:  %s\n", eff.DBPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config:   %s\n", eff.Source)

	cfg := eff.Config
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /v1/texts/{ref}            - Resolve a text through the cache tiers")
	fmt.Println("POST /v1/texts/{ref}/preload    - Warm the cache in the background")
	fmt.Println("POST /v1/sessions               - Start a reading session")
	fmt.Println("PUT  /v1/sessions/position      - Report the current reading position")
	fmt.Println("POST /v1/sessions/complete      - Mark a section finished")
	fmt.Println("GET  /v1/positions/{textType}   - Last recorded position in a system")
	fmt.Println("GET  /v1/stats                  - Full derived statistics snapshot")
	fmt.Println("GET  /v1/admin/stats            - System-wide rollup (admin key)")

	fmt.Println("\n== Production? =================================================")
	if cfg != nil {
		if n := len(cfg.Security.APIKeys.Frontend); n > 0 {
			fmt.Printf("- Frontend API keys: OK (%d)\n", n)
		} else {
			fmt.Println("- Frontend API keys: MISSING (required for client access)")
		}
		if n := len(cfg.Security.APIKeys.Admin); n > 0 {
			fmt.Printf("- Admin API keys: OK (%d)\n", n)
		} else {
			fmt.Println("- Admin API keys: MISSING (required for admin tooling)")
		}
		if cfg.Source.BaseURL != "" {
			fmt.Printf("- Text source: %s\n", cfg.Source.BaseURL)
		} else {
			fmt.Println("- Text source: not set (source.base_url or MIKRADB_SOURCE_URL)")
		}
		if cfg.Shared.BaseURL != "" {
			fmt.Printf("- Shared store: %s\n", cfg.Shared.BaseURL)
		} else {
			fmt.Println("- Shared store: disabled (device-local cache and progress only)")
		}
		if cfg.Housekeeping.Enabled {
			cron := cfg.Housekeeping.Cron
			if cron == "" {
				cron = "0 3 * * *"
			}
			fmt.Printf("- Housekeeping: enabled (cron=%s)\n", cron)
		} else {
			fmt.Println("- Housekeeping: disabled")
		}
	}

	fmt.Println("\n== Logs: =================================================")
}
