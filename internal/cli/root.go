// Package cli implements axe's command-line surface: axe check, axe test,
// and axe history, built around a cobra rootCmd whose PersistentPreRunE
// wires up the logger, config, tracing, and optional pprof collection.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-axe/axe/internal/obstrace"
	"github.com/go-axe/axe/pkg/config"
	apperrors "github.com/go-axe/axe/pkg/errors"
	"github.com/go-axe/axe/pkg/pprof"
	"github.com/go-axe/axe/pkg/utils"
)

var (
	verbose      bool
	logger       utils.Logger
	otlpEndpoint string
	configPath   string
	appConfig    *config.Config

	pprofEnabled     bool
	pprofMode        string
	pprofDir         string
	pprofProfiles    string
	pprofInterval    string
	pprofCPUDuration string
	pprofCPURate     int
	pprofAddr        string

	pprofCollector    *pprof.Collector
	telemetryShutdown obstrace.ShutdownFunc
)

// rootCmd is axe's base command.
var rootCmd = &cobra.Command{
	Use:   "axe",
	Short: "A shared-memory consistency model trace checker",
	Long: `axe checks whether a finite multi-threaded execution trace is admitted
by a specified shared-memory consistency model (SC, TSO, PSO, WMO, or POW).`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevel := utils.LevelInfo
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(logLevel, os.Stdout)

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		appConfig = cfg

		if otlpEndpoint == "" {
			otlpEndpoint = appConfig.Checker.OTLPEndpoint
		}

		if otlpEndpoint != "" {
			os.Setenv("OTEL_ENABLED", "true")
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", otlpEndpoint)
			shutdown, err := obstrace.Init(context.Background())
			if err != nil {
				return fmt.Errorf("failed to initialize tracing: %w", err)
			}
			telemetryShutdown = shutdown
		}

		if pprofEnabled {
			cfg, err := buildPprofConfig()
			if err != nil {
				return err
			}
			collector, err := pprof.NewCollector(cfg)
			if err != nil {
				return err
			}
			if err := collector.Start(); err != nil {
				return err
			}
			pprofCollector = collector
			logger.Info("pprof collection started (mode: %s, dir: %s)", cfg.Mode, cfg.OutputDir)
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if pprofCollector != nil {
			logger.Info("stopping pprof collection...")
			if err := pprofCollector.Stop(); err != nil {
				logger.Warn("failed to stop pprof collector: %v", err)
			}
		}
		if telemetryShutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetryShutdown(ctx); err != nil {
				logger.Warn("failed to shut down tracing: %v", err)
			}
		}
		return nil
	},
	SilenceUsage: true,
}

// Execute runs axe's root command, returning the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if code := apperrors.GetErrorCode(err); code != apperrors.CodeUnknown {
			GetLogger().Error("%s: %v", code, err)
		}
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP HTTP endpoint for tracing spans (overrides config, disabled by default)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (default: search ./, ./configs, /etc/axe)")

	rootCmd.PersistentFlags().BoolVar(&pprofEnabled, "pprof", false, "enable pprof performance profiling")
	rootCmd.PersistentFlags().StringVar(&pprofMode, "pprof-mode", "file", "pprof mode: file (periodic snapshots) or http (on-demand)")
	rootCmd.PersistentFlags().StringVar(&pprofDir, "pprof-dir", "./pprof", "output directory for pprof data")
	rootCmd.PersistentFlags().StringVar(&pprofProfiles, "pprof-profiles", "cpu,heap,goroutine", "comma-separated profile types")
	rootCmd.PersistentFlags().StringVar(&pprofInterval, "pprof-interval", "30s", "snapshot interval for file mode")
	rootCmd.PersistentFlags().StringVar(&pprofCPUDuration, "pprof-cpu-duration", "10s", "CPU profile duration per snapshot")
	rootCmd.PersistentFlags().IntVar(&pprofCPURate, "pprof-cpu-rate", 100, "CPU profiling rate in Hz")
	rootCmd.PersistentFlags().StringVar(&pprofAddr, "pprof-addr", ":6060", "HTTP listen address for http mode")

	rootCmd.Example = `  # Check a trace against sequential consistency
  axe check SC ./traces/sb.trace

  # Check from stdin, ignoring timestamps
  cat sb.trace | axe check TSO - -i

  # Run every trace/answer pair in a directory against POW
  axe test POW --dir ./testdata

  # Show recent check history
  axe history --limit 20`
}

// GetLogger returns the configured logger, set up once PersistentPreRunE
// has run.
func GetLogger() utils.Logger {
	if logger == nil {
		return &utils.NullLogger{}
	}
	return logger
}

// GetConfig returns the config loaded by PersistentPreRunE, falling back to
// defaults if it hasn't run yet (e.g. when called outside rootCmd.Execute).
func GetConfig() *config.Config {
	if appConfig == nil {
		cfg, err := config.Load(configPath)
		if err != nil {
			return &config.Config{}
		}
		appConfig = cfg
	}
	return appConfig
}

// BinName returns the base name of the current executable.
func BinName() string {
	return filepath.Base(os.Args[0])
}

func buildPprofConfig() (*pprof.Config, error) {
	cfg := pprof.DefaultConfig()
	cfg.Enabled = true
	cfg.OutputDir = pprofDir

	switch pprofMode {
	case "file":
		cfg.Mode = pprof.ModeFile
	case "http":
		cfg.Mode = pprof.ModeHTTP
	default:
		return nil, fmt.Errorf("invalid pprof mode: %q (valid: file, http)", pprofMode)
	}

	profiles, err := pprof.ParseProfileTypes(pprofProfiles)
	if err != nil {
		return nil, err
	}
	cfg.Profiles = profiles

	interval, err := time.ParseDuration(pprofInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid pprof interval: %w", err)
	}
	cfg.FileConfig.Interval = interval

	cpuDuration, err := time.ParseDuration(pprofCPUDuration)
	if err != nil {
		return nil, fmt.Errorf("invalid pprof CPU duration: %w", err)
	}
	cfg.FileConfig.CPUDuration = cpuDuration
	cfg.FileConfig.CPURate = pprofCPURate

	cfg.HTTPConfig.Addr = pprofAddr

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
