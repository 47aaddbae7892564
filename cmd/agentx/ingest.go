package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func ingestCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Rebuild the retrieval index from the evidence directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*cfgPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Ingest.Ingest(backgroundContext(cmd))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexed %d of %d files (%d unsupported, %d failed) into %d chunks in %s\n",
				report.Documents, report.Scanned, report.Unsupported, len(report.Failed), report.Chunks, report.Duration.Round(time.Millisecond))
			for _, name := range report.Failed {
				fmt.Fprintf(out, "  failed: %s\n", name)
			}
			if report.Summary != "" {
				fmt.Fprintf(out, "\n%s\n", report.Summary)
			}
			return nil
		},
	}
}
