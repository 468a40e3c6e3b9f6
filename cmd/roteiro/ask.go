package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roteiro-ai/roteiro/pkg/gateway"
)

func newAskCmd() *cobra.Command {
	var (
		personaID string
		clientID  string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question through the gateway",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			comp, err := buildComponents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = comp.Close() }()

			resp, err := comp.gateway.Ask(ctx, gateway.Request{
				Question:  strings.Join(args, " "),
				Persona:   personaID,
				ClientID:  clientID,
				RequestID: uuid.NewString(),
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			fmt.Println(resp.Text)
			fmt.Fprintf(os.Stderr, "\npersona=%s in_scope=%t category=%s cached=%t fallback=%t\n",
				resp.Persona, resp.InScope, resp.Category, resp.Cached, resp.Fallback)
			return nil
		},
	}

	cmd.Flags().StringVarP(&personaID, "persona", "p", "technical", "persona id (technical or empathetic)")
	cmd.Flags().StringVar(&clientID, "client", "cli", "client id used for rate limiting")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	return cmd
}
