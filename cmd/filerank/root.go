package main

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/logger"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "filerank",
	Short: "Rank source files against change-request descriptions",
	Long: `filerank scores every file of a source snapshot against an issue or
pull-request description with BM25, re-weights the best candidates by path
and emits the top files per query context as JSON lines.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("filerank version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
}

// loadConfig reads the config file and applies the persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

func executorOptions(cfg *config.Config) executor.Options {
	return executor.Options{
		Params:     cfg.Ranking.BM25,
		WideK:      cfg.Ranking.WideK,
		NarrowK:    cfg.Ranking.NarrowK,
		Reweighter: cfg.Ranking.Reweight,
	}
}
