package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	domain "finresearch/domain/research"
	"finresearch/internal"
	"finresearch/internal/research"
	"finresearch/ports"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// batchResult is the outcome of one question in a batch
type batchResult struct {
	Question string
	State    *domain.RunState
	Err      error
}

type runner interface {
	Run(ctx context.Context, question string, opts ...research.RunOption) (*domain.RunState, error)
}

func newBatchCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "batch [file]",
		Short: "Run every question in a file, one per line",
		Long: `Run the questions in a file concurrently and print the answers in input order.
Blank lines and lines starting with # are ignored.

Example: finresearch-cli batch questions.txt --concurrency 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open batch file: %w", err)
			}
			questions, err := readQuestions(f)
			f.Close()
			if err != nil {
				return err
			}
			if len(questions) == 0 {
				return fmt.Errorf("no questions in %s", args[0])
			}

			c, err := bootstrap(ctx, nil)
			if err != nil {
				return err
			}
			defer c.Close()

			results := runBatch(ctx, c.Engine, c.Runs, questions, concurrency)
			return printBatch(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 2, "Maximum number of runs in flight")

	return cmd
}

// readQuestions returns the non-blank, non-comment lines of r
func readQuestions(r io.Reader) ([]string, error) {
	var questions []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	return questions, nil
}

// runBatch runs each question independently. A failed run does not cancel
// the others; results keep input order.
func runBatch(ctx context.Context, engine runner, runs ports.RunRepository, questions []string, concurrency int) []batchResult {
	if concurrency < 1 {
		concurrency = 1
	}

	logger := internal.DefaultLogger.With("Batch")
	results := make([]batchResult, len(questions))
	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, q := range questions {
		g.Go(func() error {
			state, err := engine.Run(ctx, q)
			results[i] = batchResult{Question: q, State: state, Err: err}
			if err == nil && runs != nil {
				if err := runs.Save(ctx, state); err != nil {
					logger.Warn("failed to archive run %s: %v", state.RunID, err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func printBatch(w io.Writer, results []batchResult) error {
	failed := 0
	for i, r := range results {
		fmt.Fprintf(w, "## [%d] %s\n\n", i+1, r.Question)
		if r.Err != nil {
			failed++
			fmt.Fprintf(w, "ERROR: %v\n\n", r.Err)
			continue
		}
		fmt.Fprintf(w, "%s\n\n", r.State.FinalAnswer)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d questions failed", failed, len(results))
	}
	return nil
}
