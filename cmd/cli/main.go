package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finresearch/adapters/excel"
	"finresearch/internal/report"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "finresearch-cli",
		Short: "Ask multi-hop financial research questions from the terminal",
	}

	rootCmd.AddCommand(
		newAskCmd(),
		newBatchCmd(),
		newRunsCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newAskCmd() *cobra.Command {
	var asJSON bool
	var quiet bool
	var htmlPath string
	var xlsxPath string

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Run one research question and print the answer",
		Long: `Plan the question, gather evidence from the filings index, the web
and market data as needed, and print the synthesized answer.

Example: finresearch-cli ask "What did Apple report as net sales in its 2023 10-K and where is AAPL trading now?" --html report.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			progress := cmd.ErrOrStderr()
			if quiet || asJSON {
				progress = nil
			}
			c, err := bootstrap(ctx, progress)
			if err != nil {
				return err
			}
			defer c.Close()

			state, err := c.Engine.Run(ctx, args[0])
			if err != nil {
				return err
			}
			if err := c.Runs.Save(ctx, state); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: run not archived: %v\n", err)
			}

			if htmlPath != "" {
				page, err := report.RenderHTML(state)
				if err != nil {
					return err
				}
				if err := os.WriteFile(htmlPath, page, 0644); err != nil {
					return fmt.Errorf("write html report: %w", err)
				}
			}
			if xlsxPath != "" {
				if err := excel.WriteLedgerFile(xlsxPath, state); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(state)
			}
			_, err = fmt.Fprint(out, report.Markdown(state))
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full run state as JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	cmd.Flags().StringVar(&htmlPath, "html", "", "Write an HTML report to this file")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Write the evidence ledger to this Excel file")

	return cmd
}

func newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived research runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := bootstrap(ctx, nil)
			if err != nil {
				return err
			}
			defer c.Close()

			runs, err := c.Runs.ListRecent(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No archived runs")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %s  %-24v %3d records  %6.1fs  %s\n",
					r.RunID,
					r.StartedAt.Local().Format(time.DateTime),
					r.Capabilities,
					r.RecordCount,
					float64(r.DurationMs)/1000,
					truncate(r.Question, 80))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")

	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
