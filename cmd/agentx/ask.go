package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func askCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*cfgPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			reply, err := a.Assistant.Ask(backgroundContext(cmd), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, reply.Response)
			if len(reply.Sources) > 0 && !a.Config.Retrieval.SourcesFooter {
				fmt.Fprintf(out, "\nSources: %s\n", strings.Join(reply.Sources, ", "))
			}
			if reply.Failed {
				return fmt.Errorf("runtime call failed")
			}
			return nil
		},
	}
}
