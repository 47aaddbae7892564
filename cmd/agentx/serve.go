package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var addr string
	var ingestFirst bool
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*cfgPath, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr != "" {
				a.Config.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(backgroundContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if ingestFirst {
				if _, err := a.Ingest.Ingest(ctx); err != nil {
					a.Logger.Warn("startup ingestion failed", zap.Error(err))
				}
			}
			return a.Server().Run(ctx)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (overrides config and AGENTX_ADDR)")
	serve.Flags().BoolVar(&ingestFirst, "ingest", false, "rebuild the index before serving")
	return serve
}

func backgroundContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
