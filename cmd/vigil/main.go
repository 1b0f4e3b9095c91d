// vigil: driver drowsiness and road hazard monitor
// Runs local camera pipelines and accepts remote monitors over WebSocket
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-vigil/internal/config"
	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/debug"
)

// Version information (set at build time)
var version = "dev"

var (
	configPath    string
	logLevel      string
	debugMode     bool
	traceAnalysis bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vigil",
		Short:         "Driver drowsiness and road hazard monitor",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./vigil.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&traceAnalysis, "trace-analysis", false, "trace every analyzed frame (very verbose)")

	root.AddCommand(newServeCmd(), newReplayCmd(), newVersionCmd())
	return root
}

// loadConfig reads the config file and applies command line overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if debugMode {
		cfg.Log.Level = "debug"
	}
	if traceAnalysis {
		cfg.Log.TraceAnalysis = true
	}
	// Traces are logged at debug level.
	if cfg.Log.TraceAnalysis {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Init(cfg.Log.Level)
	debug.Enabled = cfg.Log.Level == "debug"
	debug.Analysis = cfg.Log.TraceAnalysis
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "vigil", version)
		},
	}
}
