package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"calcnotify/internal/config"
	"calcnotify/internal/notifier"
	"calcnotify/internal/transport"
	"calcnotify/internal/transport/telegram"
	"calcnotify/pkg/logx"
)

var (
	// Version is set at build time.
	Version = "dev"

	configFile string
	verbose    bool
	quiet      bool

	log       logx.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "calcnotify",
	Short: "Package calculation results into report bundles and relay them to Telegram",
	Long: `calcnotify collects a calculation's results (text, images, files) into a
timestamped report bundle under a local history directory, assembles a PDF,
and optionally relays the bundle to a Telegram chat. A persisted ledger
tracks delivered messages and deletes the oldest ones beyond keep_last.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Credentials may live in a .env next to the working dir.
		_ = godotenv.Load()
		setupLogging()
	},
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (json or yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(validateCmd)
}

// flagLevel resolves the CLI verbosity flags; they win over def.
func flagLevel(def string) string {
	switch {
	case quiet:
		return "error"
	case verbose:
		return "debug"
	}
	return def
}

// setupLogging bootstraps a console logger so config loading itself has
// somewhere to report; configureLogging replaces it once the file is read.
func setupLogging() {
	log = logx.NewConsole(flagLevel("info"))
}

// loggingConfig merges the config file's logging section with the CLI flags.
func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   flagLevel(cfg.Logging.Level),
		Console: cfg.ConsoleLogging(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func configureLogging(cfg *config.Config) {
	if logCloser != nil {
		_ = logCloser.Close()
	}
	log, logCloser = logx.New(loggingConfig(cfg))
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if logCloser != nil {
		_ = logCloser.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

func loadConfig() (*config.Config, error) {
	if strings.TrimSpace(configFile) == "" {
		cfg := &config.Config{}
		cfg.Normalize()
		configureLogging(cfg)
		return cfg, nil
	}
	mgr := config.NewManager(configFile)
	mgr.SetLogger(log)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configFile, err)
	}
	configureLogging(cfg)
	return cfg, nil
}

// applyEnvOverrides lets credentials come from the environment (or .env)
// instead of the config file.
func applyEnvOverrides(cfg *config.Config) {
	if tok := os.Getenv("CALCNOTIFY_TELEGRAM_TOKEN"); tok != "" {
		cfg.Telegram.Token = tok
	}
}

func buildNotifier(cfg *config.Config) (*notifier.Notifier, error) {
	applyEnvOverrides(cfg)

	var n *notifier.Notifier
	if cfg.Telegram.Enabled {
		client, err := telegram.New(telegram.Config{
			Token: cfg.Telegram.Token,
			ChatTarget: transport.ChatTarget{
				ChatID:   cfg.Telegram.ChatID,
				ThreadID: cfg.Telegram.ThreadID,
			},
			CallTimeout: cfg.CallTimeout(),
			RatePerSec:  cfg.Telegram.RatePerSec,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("telegram client: %w", err)
		}
		n, err = notifier.New(*cfg, client, log)
		if err != nil {
			return nil, err
		}
		return n, nil
	}
	return notifier.New(*cfg, nil, log)
}
