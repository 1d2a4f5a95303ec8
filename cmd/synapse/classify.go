package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/synapse/internal/scenario"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <text>",
		Short: "Show which scenario a description selects",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(cmd, strings.Join(args, " "))
		},
	}
}

func runClassify(cmd *cobra.Command, text string) error {
	cls := scenario.Explain(text)
	out := cmd.OutOrStdout()
	if cls.Matched {
		fmt.Fprintf(out, "%s (keyword %q)\n", cls.Category, cls.Keyword)
	} else {
		fmt.Fprintf(out, "%s (no keyword matched, fallback)\n", cls.Category)
	}
	for _, t := range scenario.ToolsFor(cls.Category) {
		fmt.Fprintf(out, "  tool: %s\n", t)
	}
	return nil
}
