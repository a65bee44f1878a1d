package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/longregen/refinery/internal/adapters/id"
	"github.com/longregen/refinery/internal/adapters/postgres"
	"github.com/longregen/refinery/internal/application/services"
	"github.com/spf13/cobra"
)

// optimizeCmd runs a prompt refinement and manages recorded runs
func optimizeCmd() *cobra.Command {
	var (
		promptType    string
		maxIterations int
		threshold     float64
		showJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "optimize <prompt>",
		Short: "Refine a prompt through the dual-model loop",
		Long: `Refine a prompt: the executor model answers it, the optimizer model
proposes an improved wording, and the candidate is kept when its response
scores better by more than the improvement threshold.

The refinement runs synchronously and prints the best prompt found.
Runs started through the API server are recorded in PostgreSQL and can
be inspected with the list, show and candidates subcommands.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			prompt := args[0]

			if err := waitForGeneration(ctx); err != nil {
				return err
			}

			service := services.NewRefinementService(client, id.New(), refinementConfig())

			opts := service.DefaultOptions()
			opts.PromptType = promptType
			if cmd.Flags().Changed("iterations") {
				opts.MaxIterations = maxIterations
			}
			if cmd.Flags().Changed("threshold") {
				opts.ImprovementThreshold = threshold
			}

			result, err := service.Refine(ctx, prompt, opts)
			if err != nil {
				return fmt.Errorf("refinement failed: %w", err)
			}

			if showJSON {
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal JSON: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Original Prompt: %s\n", result.OriginalPrompt)
			fmt.Printf("Best Prompt:     %s\n", result.BestPrompt)
			fmt.Printf("Best Score:      %.4f\n", result.BestScore)
			fmt.Printf("Rounds Accepted: %d\n", result.Rounds)
			if reason, ok := result.Meta["stop_reason"]; ok {
				fmt.Printf("Stop Reason:     %v\n", reason)
			}
			fmt.Printf("Duration:        %s\n", result.CompletedAt.Sub(result.StartedAt).Round(time.Millisecond))
			if result.FinalResponse != "" {
				fmt.Println()
				fmt.Println("Final Response:")
				fmt.Println(result.FinalResponse)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&promptType, "type", "t", "", "Prompt type (general, creative, technical, analytical; detected when empty)")
	cmd.Flags().IntVarP(&maxIterations, "iterations", "i", 0, "Maximum refinement rounds")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum score improvement to accept a candidate")
	cmd.Flags().BoolVar(&showJSON, "json", false, "Output as JSON")

	cmd.AddCommand(
		optimizeListCmd(),
		optimizeShowCmd(),
		optimizeCandidatesCmd(),
	)

	return cmd
}

// optimizeListCmd lists recorded refinement runs
func optimizeListCmd() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List refinement runs",
		Long:  `List recorded refinement runs with optional filtering by status.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			pool, err := initDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			service := services.NewRefinementService(client, id.New(), refinementConfig()).
				WithRepository(postgres.NewRefinementRepository(pool))

			runs, err := service.ListRuns(ctx, status, limit, 0)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if len(runs) == 0 {
				fmt.Println("No refinement runs found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tROUNDS\tBEST SCORE\tSTARTED\tCOMPLETED")
			fmt.Fprintln(w, "--\t----\t------\t------\t----------\t-------\t---------")

			for _, run := range runs {
				completedStr := "N/A"
				if run.CompletedAt != nil {
					completedStr = run.CompletedAt.Format("2006-01-02 15:04")
				}

				fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%.4f\t%s\t%s\n",
					run.ID[:8],
					run.PromptType,
					run.Status,
					run.Rounds,
					run.MaxIterations,
					run.BestScore,
					run.StartedAt.Format("2006-01-02 15:04"),
					completedStr,
				)
			}

			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by status (pending, running, completed, failed)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of runs to list")

	return cmd
}

// optimizeShowCmd shows details of a specific refinement run
func optimizeShowCmd() *cobra.Command {
	var showJSON bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show refinement run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			runID := args[0]

			pool, err := initDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			service := services.NewRefinementService(client, id.New(), refinementConfig()).
				WithRepository(postgres.NewRefinementRepository(pool))

			run, err := service.GetRun(ctx, runID)
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}

			if showJSON {
				data, err := json.MarshalIndent(run, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal JSON: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Printf("Refinement Run: %s\n", run.ID)
			fmt.Printf("Type:       %s\n", run.PromptType)
			fmt.Printf("Status:     %s\n", run.Status)
			fmt.Printf("Rounds:     %d / %d\n", run.Rounds, run.MaxIterations)
			fmt.Printf("Best Score: %.4f\n", run.BestScore)
			fmt.Printf("Started:    %s\n", run.StartedAt.Format(time.RFC3339))
			if run.CompletedAt != nil {
				fmt.Printf("Completed:  %s\n", run.CompletedAt.Format(time.RFC3339))
			}
			fmt.Println()

			fmt.Println("Original Prompt:")
			fmt.Println(run.OriginalPrompt)
			fmt.Println()
			fmt.Println("Best Prompt:")
			fmt.Println(run.BestPrompt)

			if len(run.Config) > 0 {
				fmt.Println()
				fmt.Println("Configuration:")
				for key, val := range run.Config {
					fmt.Printf("  %s: %v\n", key, val)
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&showJSON, "json", false, "Output as JSON")

	return cmd
}

// optimizeCandidatesCmd lists accepted candidates of a run
func optimizeCandidatesCmd() *cobra.Command {
	var showJSON bool

	cmd := &cobra.Command{
		Use:   "candidates <run-id>",
		Short: "List accepted prompt candidates for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			runID := args[0]

			pool, err := initDB(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			service := services.NewRefinementService(client, id.New(), refinementConfig()).
				WithRepository(postgres.NewRefinementRepository(pool))

			candidates, err := service.GetCandidates(ctx, runID)
			if err != nil {
				return fmt.Errorf("failed to get candidates: %w", err)
			}

			if showJSON {
				data, err := json.MarshalIndent(candidates, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal JSON: %w", err)
				}
				fmt.Println(string(data))
				return nil
			}

			if len(candidates) == 0 {
				fmt.Println("No candidates found.")
				return nil
			}

			for _, candidate := range candidates {
				fmt.Printf("Round %d (score %.4f):\n", candidate.Round, candidate.Score)
				fmt.Println(candidate.Prompt)
				fmt.Println()
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&showJSON, "json", false, "Output as JSON")

	return cmd
}
