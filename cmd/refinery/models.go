package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// modelsCmd lists models known to the generation service
func modelsCmd() *cobra.Command {
	var showJSON bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List models available on the generation service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if err := waitForGeneration(ctx); err != nil {
				return err
			}

			available, err := client.ListModels(ctx)
			if err != nil {
				return fmt.Errorf("failed to list models: %w", err)
			}

			// Loaded models are best effort; an error leaves the list empty.
			loaded, err := client.LoadedModels(ctx)
			if err != nil {
				loaded = nil
			}
			loadedVRAM := make(map[string]int64, len(loaded))
			for _, m := range loaded {
				loadedVRAM[m.Name] = m.SizeVRAM
			}

			if showJSON {
				return printJSON(map[string]any{
					"models": available,
					"loaded": loaded,
				})
			}

			if len(available) == 0 {
				fmt.Println("No models found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSIZE\tPARAMS\tQUANT\tLOADED")
			fmt.Fprintln(w, "----\t----\t------\t-----\t------")
			for _, m := range available {
				loadedStr := ""
				if vram, ok := loadedVRAM[m.Name]; ok {
					loadedStr = fmt.Sprintf("%.1f GiB VRAM", float64(vram)/(1024*1024*1024))
				}
				fmt.Fprintf(w, "%s\t%.1f GiB\t%s\t%s\t%s\n",
					m.Name,
					float64(m.Size)/(1024*1024*1024),
					m.ParameterSize,
					m.Quantization,
					loadedStr,
				)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().BoolVar(&showJSON, "json", false, "Output as JSON")

	return cmd
}
