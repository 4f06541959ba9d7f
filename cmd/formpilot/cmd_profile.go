// This file contains the profile check command.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"formpilot/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Applicant profile utilities",
}

var profileCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report which canonical answers the profile can provide",
	Long: `Check loads the profile and walks every canonical intent, reporting
which ones have a value. Missing intents are the questions formpilot will
have to skip or send to the AI service.`,
	RunE: runProfileCheck,
}

func init() {
	profileCmd.AddCommand(profileCheckCmd)
}

func runProfileCheck(cmd *cobra.Command, args []string) error {
	prof, err := profile.Load(cfg.Profile.Path)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	intents := make([]string, 0, len(profile.AllowedIntents))
	for intent := range profile.AllowedIntents {
		intents = append(intents, intent)
	}
	sort.Strings(intents)

	missing := 0
	for _, intent := range intents {
		value, ok := prof.Field(intent)
		switch {
		case ok && value != "":
			fmt.Printf("  ✓ %-35s %s\n", intent, truncate(value, 40))
		default:
			missing++
			fmt.Printf("  - %-35s (empty)\n", intent)
		}
	}

	// Document paths must also exist on disk to be uploadable.
	for intent := range profile.FileIntents {
		if path, ok := prof.Field(intent); ok && path != "" {
			if _, err := os.Stat(path); err != nil {
				fmt.Printf("  ! %-35s file not found: %s\n", intent, path)
			}
		}
	}

	fmt.Printf("\n%d of %d canonical answers available, %d custom overrides\n",
		len(intents)-missing, len(intents), len(prof.CustomAnswers))
	return nil
}
