package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List delivered report records from the ledger",
	RunE:  runHistory,
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Enforce retention now: evict old records and delete their remote messages",
	RunE:  runPrune,
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	n, err := buildNotifier(cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	records := n.History()
	if len(records) == 0 {
		fmt.Println("no delivered reports recorded")
		return nil
	}
	for i, rec := range records {
		ts := time.Unix(rec.Timestamp, 0).UTC().Format(time.RFC3339)
		fmt.Printf("%3d  %s  %s  messages=%v\n", i+1, ts, rec.Folder, rec.MessageIDs)
	}
	return nil
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	n, err := buildNotifier(cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	evicted := n.Prune(ctx)
	fmt.Printf("evicted %d record(s)\n", len(evicted))
	for _, rec := range evicted {
		fmt.Printf("  %s  messages=%v\n", rec.Folder, rec.MessageIDs)
	}
	return nil
}
