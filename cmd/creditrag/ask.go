package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
)

type askOutput struct {
	TurnID     string   `json:"turn_id"`
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Decision   string   `json:"decision"`
	K          int      `json:"k"`
	Response   string   `json:"response"`
	Sources    []string `json:"sources"`
}

func newAskCmd(c *cli) *cobra.Command {
	var localOnly, asJSON bool
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Answer a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			question := strings.Join(args, " ")
			run := a.Engine.Process
			if localOnly {
				run = a.Engine.Route
			}
			turn, err := run(ctx, question)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(newAskOutput(turn))
			}
			printDecision(out, turn)
			fmt.Fprintf(out, "\n%s\n", turn.Response)
			return nil
		},
	}
	cmd.Flags().BoolVar(&localOnly, "local-only", false, "answer with the local model regardless of confidence")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the turn as JSON")
	return cmd
}

func newAskOutput(t entities.Turn) askOutput {
	sources := make([]string, 0, len(t.Hits))
	for _, h := range t.Hits {
		sources = append(sources, fmt.Sprintf("%s#%d", h.Chunk.Source, h.Chunk.Seq))
	}
	return askOutput{
		TurnID:     t.ID,
		Intent:     string(t.Intent),
		Confidence: t.Confidence,
		Decision:   string(t.Decision),
		K:          t.K,
		Response:   t.Response,
		Sources:    sources,
	}
}
