package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/loopguard/internal/control"
	"github.com/vietddude/loopguard/internal/core/config"
	"github.com/vietddude/stylelog"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "loopguard",
	Short: "Loopguard resilience service",
	Long:  `Loopguard keeps autonomous agent loops alive: retry policies, local error recovery, credential cooldowns and loop health.`,
	Run:   runServe,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (defaults are used when empty)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// loadConfig loads .env and the config file, then installs the logger.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	switch {
	case isDebug || cfg.Logging.Level == "debug":
		slogLevel = slog.LevelDebug
	case cfg.Logging.Level == "warn":
		slogLevel = slog.LevelWarn
	case cfg.Logging.Level == "error":
		slogLevel = slog.LevelError
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	return cfg
}

func guardConfig(cfg *config.AppConfig) control.Config {
	return control.Config{
		Port:        cfg.Server.Port,
		Redis:       cfg.Redis,
		Credentials: cfg.Credentials,
		Retry:       cfg.Retry,
		Recovery:    cfg.Recovery,
		Cooldown:    cfg.Cooldown,
		Health:      cfg.Health,
	}
}

func newGuard(cfg *config.AppConfig) *control.Guard {
	g, err := control.NewGuard(guardConfig(cfg))
	if err != nil {
		slog.Error("Failed to initialize guard", "error", err)
		os.Exit(1)
	}
	return g
}
