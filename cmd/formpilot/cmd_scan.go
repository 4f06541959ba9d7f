// This file contains the scan command, a discovery-only dry run.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"formpilot/internal/browser"
	"formpilot/internal/scanner"
)

var scanJSON bool

var scanCmd = &cobra.Command{
	Use:   "scan [url]",
	Short: "Scan a page and list the questions found",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "emit question blocks as JSON")
}

func runScan(cmd *cobra.Command, args []string) error {
	url := args[0]

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	session := browser.NewSession(cfg.Browser, logger)
	if err := session.Connect(ctx); err != nil {
		return fmt.Errorf("connect browser: %w", err)
	}
	defer session.Close()

	page, err := session.Open(ctx, url)
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}

	blocks, err := scanner.New(cfg.Scan, logger).Scan(ctx, page)
	if err != nil {
		return err
	}

	if scanJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(blocks)
	}

	fmt.Printf("%d questions found\n", len(blocks))
	for _, b := range blocks {
		line := fmt.Sprintf("  [%-8s] %s", b.Kind, truncate(b.Text, 60))
		if b.Required {
			line += " *"
		}
		if len(b.Options) > 0 {
			line += fmt.Sprintf(" (%d options)", len(b.Options))
		}
		fmt.Println(line)
	}
	return nil
}
