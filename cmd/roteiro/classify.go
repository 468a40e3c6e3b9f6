package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [question]",
		Short: "Show the scope decision for a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := classifierFromConfig(cfg.Scope).Classify(strings.Join(args, " "))
			fmt.Printf("In scope: %t\nCategory: %s\n", d.InScope, d.Category)
			if d.Matched != "" {
				fmt.Printf("Matched:  %s\n", d.Matched)
			}
			return nil
		},
	}
}
