package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"routecard/internal/config"
	"routecard/internal/infrastructure/sqlite"
	"routecard/internal/log"
	"routecard/internal/routing/service"
	"routecard/internal/tracing"
)

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:     "routecard",
	Short:   "Manufacturing routing engine",
	Long: `Routecard manages process segments, site availability, and versioned
manufacturing routings with a validated dependency graph and a
DRAFT/REVIEW/RELEASED/PRODUCTION/OBSOLETE lifecycle.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/routecard/config.yaml)")
	rootCmd.PersistentFlags().String("db", "",
		"path to the routing database file")
	rootCmd.PersistentFlags().Bool("debug", false,
		"enable debug logging")

	_ = viper.BindPFlag("db_path", rootCmd.PersistentFlags().Lookup("db"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("db_path", defaults.DBPath)
	viper.SetDefault("auto_refresh", defaults.AutoRefresh)
	viper.SetDefault("default_version", defaults.DefaultVersion)
	viper.SetDefault("cache.enabled", defaults.Cache.Enabled)
	viper.SetDefault("cache.ttl", defaults.Cache.TTL)
	viper.SetDefault("cache.cleanup_interval", defaults.Cache.CleanupInterval)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .routecard/config.yaml (current directory)
		// 2. ~/.config/routecard/config.yaml (user config)
		if _, err := os.Stat(".routecard/config.yaml"); err == nil {
			viper.SetConfigFile(".routecard/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "routecard"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .routecard/config.yaml
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := ".routecard/config.yaml"
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// env is everything a command needs: the open database, the service wired
// with the configured cache and tracer, and a cleanup function.
type env struct {
	db      *sqlite.DB
	svc     *service.Service
	cleanup func()
}

// openEnv validates the configuration, opens the database, and builds the
// service. Callers must invoke cleanup when done.
func openEnv(cmd *cobra.Command) (*env, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var closers []func()

	if debug, _ := cmd.Flags().GetBool("debug"); debug || os.Getenv("ROUTECARD_DEBUG") != "" {
		logDir := filepath.Dir(cfg.DBPath)
		if closeLog, err := log.Init(filepath.Join(logDir, "routecard.log")); err == nil {
			log.SetEnabled(true)
			closers = append(closers, func() { closeLog() })
		}
	}

	tracingCfg := tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		FilePath:     cfg.Tracing.FilePath,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
	}
	if tracingCfg.Enabled && tracingCfg.Exporter == "file" && tracingCfg.FilePath == "" {
		tracingCfg.FilePath = config.DefaultTracesFilePath()
	}
	provider, err := tracing.NewProvider(tracingCfg)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	closers = append(closers, func() {
		_ = provider.Shutdown(context.Background())
	})

	db, err := sqlite.NewDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	closers = append(closers, func() { _ = db.Close() })

	opts := []service.Option{
		service.WithTracer(provider.Tracer()),
		service.WithDefaultVersion(cfg.DefaultVersion),
		service.WithResolveTTL(cfg.Cache.TTL),
	}
	if !cfg.Cache.Enabled {
		opts = append(opts, service.WithResolveCacheDisabled())
	}
	svc := service.New(db.SegmentRepository(), db.AvailabilityRepository(), db.RoutingRepository(), opts...)

	return &env{
		db:  db,
		svc: svc,
		cleanup: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}

// runWithService wraps a command body with environment setup and teardown.
func runWithService(fn func(ctx context.Context, e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.cleanup()
		return fn(cmd.Context(), e, args)
	}
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
