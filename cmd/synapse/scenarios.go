package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/synapse/internal/scenario"
)

func newScenariosCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List scenario categories and their resolution scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(cmd, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every script step")
	return cmd
}

func runScenarios(cmd *cobra.Command, verbose bool) error {
	out := cmd.OutOrStdout()
	for _, c := range scenario.Categories() {
		keywords := strings.Join(scenario.Keywords(c), ", ")
		if keywords == "" {
			keywords = "(fallback)"
		}
		fmt.Fprintf(out, "%-10s %s\n", c, keywords)
		if !verbose {
			continue
		}
		for i, step := range scenario.ScriptFor(c) {
			fmt.Fprintf(out, "  %d. [%s] %s\n", i+1, step.Kind, step.Content)
		}
	}
	return nil
}
