package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roteiro-ai/roteiro/pkg/persona"
)

func newPersonasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List the available personas",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
			for _, p := range persona.DefaultRegistry().List() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.DisplayName, p.Description)
			}
			return w.Flush()
		},
	}
}
