package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"routecard/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import <catalog.yaml>",
	Short: "Import a YAML catalog of segments, grants, and routings",
	Long: `Import a YAML catalog file.

The file may declare process segments, availability grants, and draft
routings with steps and dependency edges. Everything loads through the same
guards as interactive edits: already-registered segment codes are skipped,
grants update in place, and an existing routing version fails the import.

Example catalog:

  segments:
    - code: CUT-100
      name: Rough cut
      standard: true
      setup: 10m
      run: 30m
  grants:
    - part: widget-a
      site: dallas
      preferred: true
      lead_time: 48h
  routings:
    - part: widget-a
      site: dallas
      version: "1.0"
      steps:
        - number: 10
          segment: CUT-100
      dependencies:
        - step: 20
          after: 10
          type: must_complete`,
	Args: cobra.ExactArgs(1),
	RunE: runWithService(func(ctx context.Context, e *env, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		defer f.Close()

		imp := importer.New(e.svc)
		result, err := imp.Import(ctx, f)
		if err != nil {
			return err
		}
		return printJSON(result)
	}),
}

func init() {
	rootCmd.AddCommand(importCmd)
}
