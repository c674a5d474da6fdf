package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"puzzle-server/internal/server"
)

const releaseVersion = "1.0.0"

func validate(cfg *server.Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", cfg.Port)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database URL is required (flag --database-url or env PUZZLE_DATABASE_URL)")
	}
	return nil
}

func newCmd(cfg *server.Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PUZZLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "puzzle-server",
		Short:         "Sliding-image puzzle game server with realtime leaderboards.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validate(cfg); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: PUZZLE_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: PUZZLE_PORT)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", "", "postgres connection URL (env: PUZZLE_DATABASE_URL)")
	fs.StringVar(&cfg.PexelsAPIKey, "pexels-api-key", "", "Pexels API key, blank uses the fallback image (env: PUZZLE_PEXELS_API_KEY)")
	fs.DurationVar(&cfg.PexelsTimeout, "pexels-timeout", 10*time.Second, "timeout for Pexels API calls (env: PUZZLE_PEXELS_TIMEOUT)")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", 30*time.Minute, "lifetime of cached puzzle images (env: PUZZLE_CACHE_TTL)")
	fs.IntVar(&cfg.CacheMaxEntries, "cache-max-entries", 256, "maximum cached puzzle images (env: PUZZLE_CACHE_MAX_ENTRIES)")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", 24*time.Hour, "lifetime of login sessions (env: PUZZLE_SESSION_TTL)")
	fs.IntVar(&cfg.PointsPerTile, "points-per-tile", 10, "points awarded per correctly placed tile (env: PUZZLE_POINTS_PER_TILE)")
	fs.StringVar(&cfg.PublicURL, "public-url", "http://localhost:8080", "URL encoded into the join QR code (env: PUZZLE_PUBLIC_URL)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "display additional output (env: PUZZLE_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("puzzle-server v{{.Version}}\n")

	return cmd
}
