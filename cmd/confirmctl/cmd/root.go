// Package cmd implements the confirmctl command tree: the reference
// "agent runtime" entry point that wires internal/config,
// pkg/logger, internal/cache, internal/confirmation/store,
// internal/confirmation/preview, and internal/confirmation together.
// confirmctl is a CLI and library front door, never an HTTP transport
// (the confirmation core has none by design).
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/vitaliisemenov/agent-confirmation/internal/cache"
	"github.com/vitaliisemenov/agent-confirmation/internal/confirmation"
	"github.com/vitaliisemenov/agent-confirmation/internal/confirmation/preview"
	"github.com/vitaliisemenov/agent-confirmation/internal/confirmation/store"
	"github.com/vitaliisemenov/agent-confirmation/internal/config"
	"github.com/vitaliisemenov/agent-confirmation/internal/metrics"
	"github.com/vitaliisemenov/agent-confirmation/pkg/logger"
)

var (
	version   = "dev"
	buildTime string
	gitCommit string

	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "confirmctl",
	Short: "Reference runtime for the two-phase confirmation core",
	Long: `confirmctl builds a confirmation.Service from configuration and drives
it end to end: staging pending actions, rendering their previews, and
resolving them by confirm or cancel.

It is an operator tool and a reference wiring, not a network service — agents
embed internal/confirmation directly; confirmctl exists to exercise and
demonstrate that embedding outside of unit tests.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults to environment variables only)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(versionCmd)
}

// SetVersion records build-time version metadata for the version subcommand.
func SetVersion(v, bt, gc string) {
	version, buildTime, gitCommit = v, bt, gc
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("confirmctl version %s\n", version)
		fmt.Printf("build time: %s\n", buildTime)
		fmt.Printf("git commit: %s\n", gitCommit)
	},
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfig(configPath)
	}
	return config.LoadConfigFromEnv()
}

// buildService wires a confirmation.Service from cfg: the Redis or in-memory
// cache.Provider, the store, the default preview registry, and Prometheus
// metrics, exactly the way an embedding agent runtime would.
func buildService(cfg *config.Config) (*confirmation.Service, error) {
	log := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ttl := cfg.Confirmation.TTLMinutes
	provider, err := buildProvider(cfg, log)
	if err != nil {
		return nil, err
	}

	m := metrics.New(prometheusRegistry())
	st := store.New(provider, minutesToDuration(ttl), log, m)
	registry := preview.DefaultRegistry(log)

	svc := confirmation.New(st, registry, log,
		confirmation.WithMetrics(m),
		confirmation.WithPreviewCacheSize(cfg.Confirmation.PreviewCacheSize),
		confirmation.WithRateLimit(cfg.Confirmation.RateLimitPerMinute),
	)
	return svc, nil
}

func buildProvider(cfg *config.Config, log *slog.Logger) (cache.Provider, error) {
	ttl := minutesToDuration(cfg.Confirmation.TTLMinutes)

	switch cfg.Confirmation.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:            cfg.Redis.Addr,
			Password:        cfg.Redis.Password,
			DB:              cfg.Redis.DB,
			PoolSize:        cfg.Redis.PoolSize,
			MinIdleConns:    cfg.Redis.MinIdleConns,
			DialTimeout:     cfg.Redis.DialTimeout,
			ReadTimeout:     cfg.Redis.ReadTimeout,
			WriteTimeout:    cfg.Redis.WriteTimeout,
			MaxRetries:      cfg.Redis.MaxRetries,
			MinRetryBackoff: cfg.Redis.MinRetryBackoff,
			MaxRetryBackoff: cfg.Redis.MaxRetryBackoff,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("confirmctl: redis %s unreachable: %w", cfg.Redis.Addr, err)
		}
		return cache.NewRedisProvider(client, store.Namespace, ttl, log), nil
	case "memory":
		return cache.NewMemoryProvider(store.Namespace, ttl, log), nil
	default:
		return nil, fmt.Errorf("confirmctl: unknown cache backend %q", cfg.Confirmation.Backend)
	}
}

func minutesToDuration(minutes int) time.Duration {
	return time.Duration(minutes) * time.Minute
}

func prometheusRegistry() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}
