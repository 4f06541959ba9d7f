// This file contains the fill command, the main entry point for a run.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-rod/rod"
	"github.com/spf13/cobra"

	"formpilot/internal/ai"
	"formpilot/internal/browser"
	"formpilot/internal/controller"
	"formpilot/internal/fill"
	"formpilot/internal/patterns"
	"formpilot/internal/profile"
	"formpilot/internal/resolver"
	"formpilot/internal/scanner"
)

var (
	fillAttach bool
	fillMode   string
	fillDryRun bool
)

var fillCmd = &cobra.Command{
	Use:   "fill [url]",
	Short: "Fill a job application page",
	Long: `Fill scans the page, resolves every question, and commits the answers.

With --attach the URL is matched against already-open tabs in the running
browser instead of opening a new one. With --dry-run answers are resolved
and printed but nothing is committed.`,
	Args: cobra.ExactArgs(1),
	RunE: runFill,
}

func init() {
	fillCmd.Flags().BoolVar(&fillAttach, "attach", false, "attach to an open tab matching the URL")
	fillCmd.Flags().StringVar(&fillMode, "mode", "auto", "filling mode: auto, simple, or reactive")
	fillCmd.Flags().BoolVar(&fillDryRun, "dry-run", false, "resolve answers without committing")
}

func runFill(cmd *cobra.Command, args []string) error {
	url := args[0]

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	prof, err := profile.Load(cfg.Profile.Path)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	store, err := patterns.Open(cfg.Patterns.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open pattern store: %w", err)
	}
	defer store.Close()

	var predictor resolver.Predictor
	if cfg.AI.BaseURL != "" {
		predictor = ai.New(cfg.AI, logger)
	}
	res := resolver.New(prof, store, predictor, logger)
	scan := scanner.New(cfg.Scan, logger)

	session := browser.NewSession(cfg.Browser, logger)
	if err := session.Connect(ctx); err != nil {
		return fmt.Errorf("connect browser: %w", err)
	}
	defer session.Close()

	var page *rod.Page
	if fillAttach {
		page, err = session.Attach(ctx, url)
	} else {
		page, err = session.Open(ctx, url)
	}
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}

	if fillDryRun {
		return dryRun(ctx, scan, res, page)
	}

	mode := controller.Mode(fillMode)
	if fillMode == "auto" {
		mode = controller.DetectMode(url)
	}

	policy := fill.Policy{
		OperationTimeout: time.Duration(cfg.Fill.OperationTimeoutMs) * time.Millisecond,
		MaxAttempts:      cfg.Fill.MaxAttempts,
		BackoffBase:      time.Duration(cfg.Fill.BackoffBaseMs) * time.Millisecond,
		BackoffMult:      cfg.Fill.BackoffMultiplier,
	}
	sync := fill.NewSynchronizer(policy, logger)
	committer := browser.NewCommitter(page, logger)

	ctrl := controller.New(scan, res, sync, committer, store, consoleNotifier{}, cfg.Fill, logger)
	rep, err := ctrl.Run(ctx, page, url, mode)
	if err != nil {
		return err
	}

	fmt.Printf("\n%d fields: %d filled, %d failed, %d skipped (run %s, %s mode)\n",
		rep.Total, rep.Succeeded, rep.Failed, rep.Skipped, rep.RunID, rep.Mode)
	for _, f := range rep.Failures {
		fmt.Printf("  ✗ %s: %s\n", f.Question, f.Reason)
	}
	if rep.Failed > 0 {
		return fmt.Errorf("%d fields failed", rep.Failed)
	}
	return nil
}

// dryRun resolves and prints without touching the page.
func dryRun(ctx context.Context, scan *scanner.Scanner, res *resolver.Resolver, page *rod.Page) error {
	blocks, err := scan.Scan(ctx, page)
	if err != nil {
		return err
	}
	outcomes := res.Resolve(ctx, blocks)
	for _, o := range outcomes {
		if o.Resolved() {
			fmt.Printf("  %-50s -> %q (%s)\n", truncate(o.Block.Text, 50), o.Answer.Value, o.Answer.Source)
		} else {
			fmt.Printf("  %-50s -> skipped: %s\n", truncate(o.Block.Text, 50), o.Reason)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// consoleNotifier streams per-field progress to stdout.
type consoleNotifier struct{}

func (consoleNotifier) FieldDone(ev controller.FieldEvent) {
	switch {
	case ev.OK:
		fmt.Printf("  ✓ %s = %q (%s)\n", truncate(ev.Question, 50), ev.Value, ev.Source)
	case ev.Reason != "":
		fmt.Printf("  ✗ %s: %s\n", truncate(ev.Question, 50), ev.Reason)
	}
}

func (consoleNotifier) RunDone(controller.Report) {}
