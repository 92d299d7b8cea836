package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
)

// processor is the slice of the engine the REPL needs.
type processor interface {
	Process(ctx context.Context, question string) (entities.Turn, error)
}

func newChatCmd(c *cli) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if _, err := a.Store.Active(ctx); errors.Is(err, entities.ErrIndexNotBuilt) {
				fmt.Fprintln(out, "No index found. Run `creditrag index` first; until then every question is escalated.")
			}
			if watch {
				go func() {
					if err := a.Watch(ctx); err != nil {
						c.log.Error("watch stopped", "error", err)
					}
				}()
			}
			return chatLoop(ctx, cmd.InOrStdin(), out, a.Engine)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "rebuild the index when the corpus changes")
	return cmd
}

// maxQuestionBytes bounds one chat line. Longer lines fail that turn only.
const maxQuestionBytes = 32 << 10

// chatLoop reads one question per line until quit, exit or EOF. A failed
// turn is reported and the loop continues.
func chatLoop(ctx context.Context, in io.Reader, out io.Writer, engine processor) error {
	fmt.Fprintln(out, "Credit System Engine initialized.")
	fmt.Fprintln(out, "Type 'quit' or 'exit' to stop.")
	fmt.Fprintln(out)

	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(out, "You: ")
		line, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return readErr
		}
		if readErr != nil && line == "" {
			fmt.Fprintln(out)
			return nil
		}

		question := strings.TrimRight(line, "\r\n")
		switch strings.ToLower(strings.TrimSpace(question)) {
		case "quit", "exit":
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case "":
		default:
			if err := askOne(ctx, out, engine, question); err != nil {
				return err
			}
		}
		if readErr != nil {
			fmt.Fprintln(out)
			return nil
		}
	}
}

// askOne runs a single turn. It only returns an error when ctx is done.
func askOne(ctx context.Context, out io.Writer, engine processor, question string) error {
	if len(question) > maxQuestionBytes {
		fmt.Fprintf(out, "Error: question is %d bytes, the limit is %d\n\n", len(question), maxQuestionBytes)
		return nil
	}

	turn, err := engine.Process(ctx, question)
	if turn.Intent != "" {
		printDecision(out, turn)
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprintf(out, "Error: %v\n\n", err)
		return nil
	}
	fmt.Fprintf(out, "\n%s\n\n", turn.Response)
	return nil
}

func printDecision(out io.Writer, turn entities.Turn) {
	if turn.Decision == "" {
		fmt.Fprintf(out, "[Intent: %s]\n", turn.Intent)
		return
	}
	fmt.Fprintf(out, "[Intent: %s] [Confidence: %.3f] [Decision: %s]\n", turn.Intent, turn.Confidence, turn.Decision)
}
