package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"wordgames/internal/models"
	"wordgames/internal/services"

	"github.com/spf13/cobra"
)

// PlayCommand returns the dry-run play command
func PlayCommand(env *Env) *cobra.Command {
	var userID int
	var kindName, words string

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Show the questions a user would be served",
		Long: `Run question selection for a user and print the batch as JSON.

Selection reads history and mastery only, so nothing is recorded.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			kind, err := models.ParseGameKind(kindName)
			if err != nil {
				return err
			}

			container, err := env.Container(ctx)
			if err != nil {
				return err
			}
			gameService, err := container.GetGameService()
			if err != nil {
				return err
			}

			return runPlay(ctx, cmd.OutOrStdout(), gameService, userID, kind, splitWords(words))
		},
	}

	cmd.Flags().IntVar(&userID, "user", 0, "User id to select for")
	cmd.Flags().StringVar(&kindName, "kind", "", "Game kind")
	cmd.Flags().StringVar(&words, "words", "", "Comma separated words the questions must contain")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("kind")

	return cmd
}

func runPlay(ctx context.Context, out io.Writer, gameService services.GameServiceInterface, userID int, kind models.GameKind, words []string) error {
	batch, err := gameService.PlayGame(ctx, userID, kind, words)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(batch)
}

// MasteryCommands returns the mastery commands
func MasteryCommands(env *Env) *cobra.Command {
	masteryCmd := &cobra.Command{
		Use:   "mastery",
		Short: "Word mastery commands",
	}

	var userID int
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show a user's word masteries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			container, err := env.Container(ctx)
			if err != nil {
				return err
			}
			gameService, err := container.GetGameService()
			if err != nil {
				return err
			}
			return runShowMastery(ctx, cmd.OutOrStdout(), gameService, userID)
		},
	}
	showCmd.Flags().IntVar(&userID, "user", 0, "User id")
	_ = showCmd.MarkFlagRequired("user")

	masteryCmd.AddCommand(showCmd)
	return masteryCmd
}

func runShowMastery(ctx context.Context, out io.Writer, gameService services.GameServiceInterface, userID int) error {
	entries, err := gameService.ListMasteries(ctx, userID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(out, "No masteries for user %d\n", userID)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WORD\tWORD ID\tMASTERY")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%d\n", e.Word, e.WordID, e.Mastery)
	}
	return w.Flush()
}
