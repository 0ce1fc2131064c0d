package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tdm/pkg/config"
)

var (
	configPath string
	logLevel   string
	seedFlag   uint64
	channels   int
	samples    int
	watchdog   int
	workers    int
)

var rootCmd = &cobra.Command{
	Use:   "tdm",
	Short: "Test-data harness for the TDM glitch trigger",
	Long: `tdm synthesizes multi-channel I/Q waveforms with injected glitches, derives
per-channel trigger calibration, and analyzes trigger output from a device
under test.

  gen      write input_tdm.txt and config_tdm.txt
  analyze  report trigger episodes from an output stream
  run      gen, loopback device and analyze in one process
  serve    stream runs to websocket clients`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.Uint64Var(&seedFlag, "seed", 0, "random seed (default: from config or entropy)")
	pf.IntVarP(&channels, "channels", "n", 0, "number of channels")
	pf.IntVarP(&samples, "samples", "t", 0, "samples per channel")
	pf.IntVar(&watchdog, "watchdog", 0, "watchdog limit in samples")
	pf.IntVar(&workers, "workers", 0, "parallel generator workers (0 = one per CPU)")

	rootCmd.AddCommand(genCmd, analyzeCmd, runCmd, serveCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig merges defaults, the config file and any flags the user set, then
// validates the result.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("seed") {
		seed := seedFlag
		cfg.Seed = &seed
	}
	if flags.Changed("channels") {
		cfg.Channels = channels
	}
	if flags.Changed("samples") {
		cfg.Samples = samples
	}
	if flags.Changed("watchdog") {
		cfg.WatchdogLimit = watchdog
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	if err := setupLogging(cfg.LogLevel); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func setupLogging(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return &config.ConfigError{Field: "log_level", Reason: err.Error()}
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// resolveSeed returns the configured seed, or draws one from process entropy
// and logs it so the run can be reproduced.
func resolveSeed(cfg config.Config, log *logrus.Entry) uint64 {
	if cfg.Seed != nil {
		return *cfg.Seed
	}
	seed := rand.Uint64()
	log.WithField("seed", seed).Warn("no seed configured, drew one from entropy")
	return seed
}
