package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"agentx/internal/app"
	"agentx/internal/config"
	"agentx/internal/logger"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	root := &cobra.Command{
		Use:           "agentx",
		Short:         "Local evidence assistant with retrieval-augmented chat",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to YAML config (default ./agentx.yaml or ~/.config/agentx/config.yaml)")

	root.AddCommand(serveCMD(&cfgPath), ingestCMD(&cfgPath), askCMD(&cfgPath), chatCMD(&cfgPath))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "agentx:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(path)
}

// bootstrap loads configuration, builds the logger and wires the app.
// logFile, when set, redirects logs away from the terminal.
func bootstrap(cfgPath string, logFile bool) (*app.App, error) {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	var outputs []string
	if logFile {
		dir := filepath.Join(cfg.Paths.DataDir, "logs")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		outputs = []string{filepath.Join(dir, "agentx.log")}
	}
	log, err := logger.New(cfg.Log, outputs...)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return a, nil
}
