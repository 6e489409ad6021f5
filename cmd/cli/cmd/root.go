package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/heapgraph-analysis/pkg/config"
	"github.com/heapgraph-analysis/pkg/pprof"
	"github.com/heapgraph-analysis/pkg/telemetry"
	"github.com/heapgraph-analysis/pkg/utils"
)

var (
	// Global flags
	configPath string
	verbose    bool

	logger utils.Logger
	cfg    *config.Config

	// Telemetry shutdown hook
	telemetryShutdown telemetry.ShutdownFunc

	// Pprof flags
	pprofEnabled     bool
	pprofMode        string
	pprofDir         string
	pprofProfiles    string
	pprofInterval    string
	pprofCPUDuration string
	pprofAddr        string

	// Pprof collector
	pprofCollector *pprof.Collector
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "heapgraph-analyzer",
	Short: "A heap-graph analysis tool",
	Long: `heapgraph-analyzer ingests streamed heap snapshot records, reconstructs
the object reference graph and generates retained-memory flame graphs.

Input is a line-delimited JSON dump of heap graph packets: objects with
their outgoing references, GC roots, interned class and field names, and
optional deobfuscation mappings. For every snapshot found in the stream
the tool computes shortest root distances and aggregates retained sizes
along the shortest paths.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log := utils.NewDefaultLogger(utils.LevelInfo, os.Stdout)
		logger = log
		utils.SetGlobalLogger(logger)

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		// --verbose wins over the configured log level
		if verbose {
			log.SetLevel(utils.LevelDebug)
		} else {
			log.SetLevel(utils.ParseLogLevel(cfg.Log.Level))
		}

		// Initialize tracing, a no-op unless OTEL_ENABLED is set
		telemetryShutdown, err = telemetry.Init(cmd.Context())
		if err != nil {
			logger.Warn("Failed to initialize telemetry: %v", err)
		}

		// Initialize pprof if enabled
		if pprofEnabled {
			pcfg, err := buildPprofConfig()
			if err != nil {
				return err
			}

			collector, err := pprof.NewCollector(pcfg)
			if err != nil {
				return err
			}

			if err := collector.Start(); err != nil {
				return err
			}

			pprofCollector = collector
			logger.Info("pprof collection started (mode: %s)", pcfg.Mode)
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		// Stop pprof collector
		if pprofCollector != nil {
			if err := pprofCollector.Stop(); err != nil {
				logger.Warn("Failed to stop pprof collector: %v", err)
			}
			if pprofCollector.LastError() != nil {
				logger.Warn("pprof snapshot error: %v", pprofCollector.LastError())
			}
			logger.Info("pprof data saved to: %s", pprofCollector.OutputDir())
		}

		if telemetryShutdown != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetryShutdown(ctx); err != nil {
				logger.Warn("Failed to shut down telemetry: %v", err)
			}
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	// Pprof flags
	rootCmd.PersistentFlags().BoolVar(&pprofEnabled, "pprof", false, "Enable pprof performance profiling")
	rootCmd.PersistentFlags().StringVar(&pprofMode, "pprof-mode", "file", "Pprof mode: file (periodic snapshots) or http (on-demand)")
	rootCmd.PersistentFlags().StringVar(&pprofDir, "pprof-dir", "./pprof", "Output directory for pprof data")
	rootCmd.PersistentFlags().StringVar(&pprofProfiles, "pprof-profiles", "cpu,heap,goroutine", "Comma-separated profile types: cpu,heap,goroutine,block,mutex,allocs")
	rootCmd.PersistentFlags().StringVar(&pprofInterval, "pprof-interval", "30s", "Snapshot interval for file mode")
	rootCmd.PersistentFlags().StringVar(&pprofCPUDuration, "pprof-cpu-duration", "10s", "CPU profile duration per snapshot")
	rootCmd.PersistentFlags().StringVar(&pprofAddr, "pprof-addr", ":6060", "HTTP listen address for http mode")

	// Set dynamic example using actual binary name
	binName := BinName()
	rootCmd.Example = `  # Analyze a local heap dump stream
  ` + binName + ` analyze -i ./heap_dump.jsonl

  # Analyze a dump from object storage and persist the results
  ` + binName + ` analyze -c ./config.yaml --key dumps/heap_dump.jsonl

  # Emit folded stacks for external flame graph tooling
  ` + binName + ` analyze -i ./heap_dump.jsonl -f folded

  # List persisted snapshots
  ` + binName + ` snapshots list -c ./config.yaml

  # Enable pprof self-profiling during analysis
  ` + binName + ` analyze -i ./heap_dump.jsonl --pprof --pprof-profiles cpu,heap`
}

// GetLogger returns the configured logger
func GetLogger() utils.Logger {
	return logger
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	return cfg
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}

// buildPprofConfig builds pprof configuration from command line flags.
func buildPprofConfig() (*pprof.Config, error) {
	pcfg := pprof.DefaultConfig()
	pcfg.Mode = pprof.Mode(pprofMode)
	pcfg.OutputDir = pprofDir
	pcfg.Addr = pprofAddr

	profiles, err := pprof.ParseProfileTypes(pprofProfiles)
	if err != nil {
		return nil, err
	}
	pcfg.Profiles = profiles

	pcfg.Interval, err = time.ParseDuration(pprofInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid pprof interval: %w", err)
	}
	pcfg.CPUDuration, err = time.ParseDuration(pprofCPUDuration)
	if err != nil {
		return nil, fmt.Errorf("invalid pprof CPU duration: %w", err)
	}

	if err := pcfg.Validate(); err != nil {
		return nil, err
	}
	return pcfg, nil
}
