package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/longregen/refinery/internal/adapters/id"
	"github.com/longregen/refinery/internal/adapters/resource"
	"github.com/longregen/refinery/internal/application/services"
	"github.com/longregen/refinery/internal/config"
	"github.com/longregen/refinery/internal/domain/models"
	"github.com/longregen/refinery/internal/ports"
	"github.com/spf13/cobra"
)

// benchCmd profiles models against the generation service
func benchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark models against the generation service",
		Long: `Benchmark generation models: sequential profiling with resource
deltas, concurrent pair tests, a prompt category battery, and
generation parameter sweeps.

Subcommands:
  models      Profile models sequentially
  pair        Profile two models running concurrently
  categories  Run the prompt category battery against one model
  sweep       Sweep generation parameters against one model`,
	}

	cmd.AddCommand(
		benchModelsCmd(),
		benchPairCmd(),
		benchCategoriesCmd(),
		benchSweepCmd(),
	)

	return cmd
}

// newBenchmarkService builds the benchmark service for one CLI invocation.
func newBenchmarkService() *services.BenchmarkService {
	return services.NewBenchmarkService(client, resource.NewProbe(), id.New(), benchmarkConfig())
}

// loadSuiteFlag loads the --suite file when given, or returns nil.
func loadSuiteFlag(path string) (*config.Suite, error) {
	if path == "" {
		return nil, nil
	}
	return config.LoadSuite(path)
}

// benchModelsCmd profiles models sequentially
func benchModelsCmd() *cobra.Command {
	var (
		suitePath string
		showJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "models [model...]",
		Short: "Profile models sequentially with resource deltas",
		Long: `Profile each model with one warm-up prompt, recording latency and
memory deltas around the call. Models come from arguments or from the
suite file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			modelNames := args
			suite, err := loadSuiteFlag(suitePath)
			if err != nil {
				return err
			}
			if suite != nil && len(modelNames) == 0 {
				modelNames = suite.Models
			}
			if len(modelNames) == 0 {
				return fmt.Errorf("no models given (pass model names or --suite)")
			}

			if err := waitForGeneration(ctx); err != nil {
				return err
			}

			samples, err := newBenchmarkService().ProfileModels(ctx, modelNames)
			if err != nil {
				return fmt.Errorf("profiling failed: %w", err)
			}

			if showJSON {
				return printJSON(samples)
			}

			printSampleTable(samples)
			return nil
		},
	}

	cmd.Flags().StringVar(&suitePath, "suite", "", "Benchmark suite YAML file")
	cmd.Flags().BoolVar(&showJSON, "json", false, "Output as JSON")

	return cmd
}

// benchPairCmd profiles model pairs running concurrently
func benchPairCmd() *cobra.Command {
	var (
		suitePath string
		showJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "pair [model1 model2]",
		Short: "Profile two models running concurrently",
		Long: `Send one prompt to each model at the same time and record per-model
latency and the total wall time. Pairs come from the arguments or from
the suite file; with several pairs, the best executor/optimizer pair
within the VRAM budget is recommended.`,
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			suite, err := loadSuiteFlag(suitePath)
			if err != nil {
				return err
			}

			var pairs [][2]string
			switch {
			case len(args) == 2:
				pairs = [][2]string{{args[0], args[1]}}
			case suite != nil && len(suite.Pairs) > 0:
				pairs = suite.PairList()
			default:
				return fmt.Errorf("no pair given (pass two model names or --suite with pairs)")
			}

			if err := waitForGeneration(ctx); err != nil {
				return err
			}

			service := newBenchmarkService()
			reports, err := service.ProfilePairs(ctx, pairs)
			if err != nil {
				return fmt.Errorf("pair profiling failed: %w", err)
			}

			if showJSON {
				return printJSON(reports)
			}

			printPairTable(reports)

			if len(reports) > 1 {
				loaded, err := client.LoadedModels(ctx)
				if err != nil {
					loaded = nil
				}
				if best, ok := services.RecommendPair(reports, loaded, cfg.Benchmark.VRAMBudgetMiB); ok {
					fmt.Println()
					fmt.Printf("Recommended pair: %s + %s (total %s)\n",
						best.Model1, best.Model2, formatLatency(best.TotalTime))
				} else {
					fmt.Println()
					fmt.Println("No pair fits the VRAM budget with both models succeeding.")
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&suitePath, "suite", "", "Benchmark suite YAML file")
	cmd.Flags().BoolVar(&showJSON, "json", false, "Output as JSON")

	return cmd
}

// benchCategoriesCmd runs the prompt category battery
func benchCategoriesCmd() *cobra.Command {
	var (
		suitePath string
		showJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "categories <model>",
		Short: "Run the prompt category battery against one model",
		Long: `Run every prompt of every category against the model and summarize
each category over its successful samples. The built-in battery covers
creative, technical, analytical, instruction and conversational
prompts; a suite file can replace it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			model := args[0]

			suite, err := loadSuiteFlag(suitePath)
			if err != nil {
				return err
			}
			var categories []ports.PromptCategory
			if suite != nil {
				categories = suite.Categories
			}

			if err := waitForGeneration(ctx); err != nil {
				return err
			}

			runs, err := newBenchmarkService().RunCategories(ctx, model, categories)
			if err != nil {
				return fmt.Errorf("category battery failed: %w", err)
			}

			if showJSON {
				return printJSON(runs)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tSAMPLES\tSUCCESS\tMEAN LATENCY\tMEAN LENGTH\tMEAN QUALITY")
			fmt.Fprintln(w, "--------\t-------\t-------\t------------\t-----------\t------------")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%d\t%.0f%%\t%s\t%.0f\t%.3f\n",
					run.Category,
					run.Summary.TotalSamples,
					run.Summary.SuccessRate*100,
					formatLatency(run.Summary.MeanLatency),
					run.Summary.MeanResponseLength,
					run.Summary.MeanQuality,
				)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&suitePath, "suite", "", "Benchmark suite YAML file")
	cmd.Flags().BoolVar(&showJSON, "json", false, "Output as JSON")

	return cmd
}

// benchSweepCmd sweeps generation parameters
func benchSweepCmd() *cobra.Command {
	var (
		suitePath string
		runs      int
		showJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "sweep <model>",
		Short: "Sweep generation parameters against one model",
		Long: `Run a fixed prompt repeatedly under each parameter set and summarize
each set over its successful samples. The built-in sets vary
temperature and top_p; a suite file can replace them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			model := args[0]

			suite, err := loadSuiteFlag(suitePath)
			if err != nil {
				return err
			}
			var sets []ports.ParameterSet
			runsPerSet := runs
			if suite != nil {
				sets = suite.ParameterSets
				if runsPerSet == 0 && suite.RunsPerSet > 0 {
					runsPerSet = suite.RunsPerSet
				}
			}
			if runsPerSet == 0 {
				runsPerSet = cfg.Benchmark.RunsPerSet
			}

			if err := waitForGeneration(ctx); err != nil {
				return err
			}

			sweeps, err := newBenchmarkService().SweepParameters(ctx, model, sets, runsPerSet)
			if err != nil {
				return fmt.Errorf("parameter sweep failed: %w", err)
			}

			if showJSON {
				return printJSON(sweeps)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SET\tTEMP\tTOP P\tSAMPLES\tSUCCESS\tMEAN LATENCY\tMEAN LENGTH\tMEAN QUALITY")
			fmt.Fprintln(w, "---\t----\t-----\t-------\t-------\t------------\t-----------\t------------")
			for _, sweep := range sweeps {
				fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%d\t%.0f%%\t%s\t%.0f\t%.3f\n",
					sweep.Set.Name,
					sweep.Set.Temperature,
					sweep.Set.TopP,
					sweep.Summary.TotalSamples,
					sweep.Summary.SuccessRate*100,
					formatLatency(sweep.Summary.MeanLatency),
					sweep.Summary.MeanResponseLength,
					sweep.Summary.MeanQuality,
				)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&suitePath, "suite", "", "Benchmark suite YAML file")
	cmd.Flags().IntVar(&runs, "runs", 0, "Runs per parameter set (default from config)")
	cmd.Flags().BoolVar(&showJSON, "json", false, "Output as JSON")

	return cmd
}

// printJSON writes any value as indented JSON to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// printSampleTable renders benchmark samples as a table.
func printSampleTable(samples []models.BenchmarkSample) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tSUCCESS\tLATENCY\tMEM DELTA\tGPU DELTA\tLENGTH\tERROR")
	fmt.Fprintln(w, "-----\t-------\t-------\t---------\t---------\t------\t-----")
	for _, sample := range samples {
		errStr := ""
		if !sample.Success {
			errStr = sample.ErrorKind
		}
		fmt.Fprintf(w, "%s\t%t\t%s\t%.1f MiB\t%.1f MiB\t%d\t%s\n",
			sample.Model,
			sample.Success,
			formatLatency(sample.Latency),
			float64(sample.MemoryDelta)/(1024*1024),
			sample.GPUDelta,
			sample.ResponseLength,
			errStr,
		)
	}
	w.Flush()
}

// printPairTable renders pair reports as a table.
func printPairTable(reports []*models.PairReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL 1\tMODEL 2\tLATENCY 1\tLATENCY 2\tTOTAL\tOK")
	fmt.Fprintln(w, "-------\t-------\t---------\t---------\t-----\t--")
	for _, report := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\n",
			report.Model1,
			report.Model2,
			formatLatency(report.Model1Latency),
			formatLatency(report.Model2Latency),
			formatLatency(report.TotalTime),
			report.OverallSuccess,
		)
	}
	w.Flush()
}
