// This file contains the patterns subcommands for inspecting and exporting
// the learned-pattern store.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"formpilot/internal/patterns"
	"formpilot/internal/textmatch"
)

var (
	exportShareable bool
	exportOut       string
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Inspect the learned-pattern store",
}

var patternsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pattern and fill-run statistics",
	RunE:  runPatternsStats,
}

var patternsSearchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Find patterns whose question matches the given text",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternsSearch,
}

var patternsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export patterns as JSON",
	RunE:  runPatternsExport,
}

func init() {
	patternsExportCmd.Flags().BoolVar(&exportShareable, "shareable", false, "only verified patterns with non-personal intents")
	patternsExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "write to file instead of stdout")

	patternsCmd.AddCommand(patternsStatsCmd)
	patternsCmd.AddCommand(patternsSearchCmd)
	patternsCmd.AddCommand(patternsExportCmd)
}

func openStore() (*patterns.Store, error) {
	store, err := patterns.Open(cfg.Patterns.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open pattern store: %w", err)
	}
	return store, nil
}

func runPatternsStats(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.GetStats()
	if err != nil {
		return err
	}

	fmt.Printf("Patterns:        %d\n", stats.TotalPatterns)
	fmt.Printf("Fill runs:       %d\n", stats.FillRuns)
	fmt.Printf("Fields filled:   %d\n", stats.FieldsSucceeded)
	fmt.Printf("Fields failed:   %d\n", stats.FieldsFailed)

	if len(stats.IntentBreakdown) > 0 {
		intents := make([]string, 0, len(stats.IntentBreakdown))
		for intent := range stats.IntentBreakdown {
			intents = append(intents, intent)
		}
		sort.Strings(intents)
		fmt.Println("\nBy intent:")
		for _, intent := range intents {
			fmt.Printf("  %-35s %d\n", intent, stats.IntentBreakdown[intent])
		}
	}
	return nil
}

func runPatternsSearch(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	query := textmatch.Normalize(args[0])
	found := 0
	for _, p := range store.All() {
		if !strings.Contains(p.QuestionPattern, query) &&
			textmatch.KeywordOverlap(query, p.QuestionPattern) < 0.5 {
			continue
		}
		found++
		fmt.Printf("%s  [%s / %s]  conf=%.2f used=%d\n", p.QuestionPattern, p.Intent, p.FieldClass, p.Confidence, p.UsageCount)
		for _, m := range p.Mappings {
			fmt.Printf("    %q <- %s\n", m.CanonicalValue, strings.Join(m.Variants, ", "))
		}
	}
	if found == 0 {
		fmt.Println("no matching patterns")
	}
	return nil
}

func runPatternsExport(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	list := store.All()
	if exportShareable {
		list = store.Shareable()
	}

	out := os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}
