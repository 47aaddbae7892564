package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"agentx/internal/tui"
)

func chatCMD(cfgPath *string) *cobra.Command {
	var ingestFirst bool
	chat := &cobra.Command{
		Use:   "chat",
		Short: "Open the terminal chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*cfgPath, true)
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := backgroundContext(cmd)

			var summary string
			if ingestFirst {
				report, err := a.Ingest.Ingest(ctx)
				if err != nil {
					return err
				}
				summary = fmt.Sprintf("%d documents, %d chunks. %s", report.Documents, report.Chunks, report.Summary)
			} else if stats := a.Index.Stats(ctx); stats.Chunks > 0 {
				summary = fmt.Sprintf("%d documents, %d chunks indexed %s", stats.Documents, stats.Chunks, stats.BuiltAt.Format("2006-01-02 15:04"))
			} else {
				summary = "No index yet. Run `agentx ingest` or start with --ingest."
			}

			header := fmt.Sprintf("agentx  %s / %s", a.Runtime.Name(), a.Runtime.Model())
			_, err = tea.NewProgram(tui.New(a.Assistant, header, summary), tea.WithAltScreen()).Run()
			return err
		},
	}
	chat.Flags().BoolVar(&ingestFirst, "ingest", false, "rebuild the index before opening the chat")
	return chat
}
