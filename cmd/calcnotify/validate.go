package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long:  `Validate the configuration file without sending anything.`,
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		return errors.New("config file is required (-c)")
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", configFile)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Name: %s\n", cfg.Name)
	fmt.Printf("  History dir: %s\n", cfg.HistoryDir)
	fmt.Printf("  Keep last: %d\n", cfg.KeepLast)
	fmt.Printf("  PDF: assemble=%v attach=%v\n", cfg.PDFEnabled(), cfg.PDF.Attach)
	fmt.Printf("  Delivery: workers=%d queue=%d\n", cfg.Delivery.Workers, cfg.Delivery.QueueSize)
	fmt.Printf("  Telegram: %v\n", cfg.Telegram.Enabled)
	if cfg.Telegram.Enabled {
		fmt.Printf("    Chat ID: %d\n", cfg.Telegram.ChatID)
		fmt.Printf("    Bot token: (configured)\n")
	}
	if cfg.Heartbeat.Enabled {
		fmt.Printf("  Heartbeat: %q\n", cfg.Heartbeat.Schedule)
	}
	return nil
}
