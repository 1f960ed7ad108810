package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yajur-khanna/asm-tool/internal/recon/amassgraph"
)

var graphOut string

var graphCmd = &cobra.Command{
	Use:   "graph <amass-output-file>",
	Short: "Convert amass relationship output into a JSON graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()

		g, err := amassgraph.Parse(f)
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(g, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode graph: %w", err)
		}
		data = append(data, '\n')

		log.Infow("Parsed amass graph",
			"nodes", len(g.Nodes),
			"edges", len(g.Edges),
			"skipped", g.Skipped,
		)

		if graphOut == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(graphOut, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", graphOut, err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringVarP(&graphOut, "out", "o", "", "write JSON to this file instead of stdout")
}
