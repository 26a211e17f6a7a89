package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"calcnotify/internal/notifier"
)

var (
	sendTitle  string
	sendText   string
	sendImages []string
	sendFiles  []string
	sendLocal  bool
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Assemble a report bundle and deliver it",
	Long: `Assemble a report bundle (folder + meta.json + copied images/files +
assembled PDF) under the history directory and deliver it to the configured
Telegram chat. With --local the bundle is only written to disk.`,
	RunE: runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendTitle, "title", "t", "", "report title")
	sendCmd.Flags().StringVarP(&sendText, "text", "m", "", "report body text")
	sendCmd.Flags().StringArrayVarP(&sendImages, "image", "i", nil, "image file to include (repeatable)")
	sendCmd.Flags().StringArrayVarP(&sendFiles, "file", "f", nil, "extra file to attach (repeatable)")
	sendCmd.Flags().BoolVar(&sendLocal, "local", false, "keep the report local; skip remote delivery")
}

func runSend(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	n, err := buildNotifier(cfg)
	if err != nil {
		return err
	}

	folder, err := n.Report(notifier.ReportRequest{
		Title:      sendTitle,
		Text:       sendText,
		ImagePaths: sendImages,
		Files:      sendFiles,
		Send:       !sendLocal,
	})
	if err != nil {
		return err
	}

	// One-shot tool: drain the delivery queue before exiting.
	if err := n.Close(); err != nil {
		return err
	}
	fmt.Println(folder)
	return nil
}
