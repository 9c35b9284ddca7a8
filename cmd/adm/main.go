// Package main provides the admin CLI for the word games backend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"wordgames/cmd/adm/commands"
	"wordgames/internal/config"
	"wordgames/internal/observability"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if os.Getenv("WORDGAMES_CONFIG_FILE") == "" {
		for _, path := range []string{"config.yaml", "../config.yaml", "../../config.yaml"} {
			if _, err := os.Stat(path); err == nil {
				_ = os.Setenv("WORDGAMES_CONFIG_FILE", path)
				break
			}
		}
	}

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// No collector is expected next to the admin tool
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	_, _, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "wordgames-adm", "error")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}

	env := commands.NewEnv(cfg, logger)

	rootCmd := &cobra.Command{
		Use:   "wordgames-adm",
		Short: "Word games administration tool",
		Long: `Word games administration tool

Commands for schema migrations, question bank imports and inspecting
what the selection engine serves a user.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.DatabaseCommands(env))
	rootCmd.AddCommand(commands.QuestionCommands(env))
	rootCmd.AddCommand(commands.MasteryCommands(env))
	rootCmd.AddCommand(commands.PlayCommand(env))

	err = rootCmd.ExecuteContext(ctx)
	if closeErr := env.Close(context.Background()); closeErr != nil {
		logger.Warn(ctx, "Failed to shut down services", map[string]interface{}{"error": closeErr.Error()})
	}
	if err != nil {
		os.Exit(1)
	}
}
