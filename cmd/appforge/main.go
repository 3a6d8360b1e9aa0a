// Command appforge drives the generation engine locally: generate an app
// from a description, apply natural-language edits, and manage live
// container previews.
package main

import (
	"fmt"
	"os"

	"appforge/internal/config"
	"appforge/internal/logging"
	"appforge/internal/orchestrator"

	"github.com/spf13/cobra"
)

var (
	flagWorkspace string
	flagDebug     bool
)

func main() {
	root := &cobra.Command{
		Use:   "appforge",
		Short: "AI-driven application builder",
		Long: `appforge plans, generates, validates and previews small web
applications from natural-language descriptions, then applies iterative
edits with structure-preserving patches.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagWorkspace, "workspace", ".", "workspace directory")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	root.AddCommand(
		newGenerateCmd(),
		newEditCmd(),
		newStatusCmd(),
		newHistoryCmd(),
		newPreviewCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// bootstrap loads config, initializes logging and wires the engine.
func bootstrap() (*orchestrator.Orchestrator, *config.Config, error) {
	cfg, err := config.Load(config.DefaultPath(flagWorkspace))
	if err != nil {
		return nil, nil, err
	}
	cfg.Workspace = flagWorkspace
	if flagDebug {
		cfg.Logging.DebugMode = true
	}

	if err := logging.Initialize(cfg.Workspace, logging.Settings{
		DebugMode:  cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return nil, nil, err
	}

	engine, err := orchestrator.Bootstrap(cfg)
	if err != nil {
		return nil, nil, err
	}
	return engine, cfg, nil
}
