package commands

import (
	"context"
	"database/sql"
	"fmt"
	"text/tabwriter"

	"wordgames/internal/database"
	"wordgames/internal/models"
	contextutils "wordgames/internal/utils"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(env *Env) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the word games backend.

Available commands:
  migrate   - Apply or roll back schema migrations
  stats     - Show row counts per table`,
	}

	dbCmd.AddCommand(migrateCmd(env))
	dbCmd.AddCommand(statsCmd(env))

	return dbCmd
}

// migrateCmd returns the migrate command
func migrateCmd(env *Env) *cobra.Command {
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations",
		Long:  `Apply every pending migration, or roll back the given number of migrations with --down.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			dm := database.NewManager(env.Logger)

			if down > 0 {
				if err := dm.RollbackMigrations(ctx, env.Config.Database, down); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d migration(s) on %s\n", down, maskDatabaseURL(env.Config.Database.URL))
				return nil
			}

			if err := dm.RunMigrations(ctx, env.Config.Database); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied on %s\n", maskDatabaseURL(env.Config.Database.URL))
			return nil
		},
	}

	cmd.Flags().IntVar(&down, "down", 0, "Number of migrations to roll back")

	return cmd
}

// statsCmd returns the stats command
func statsCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Long:  `Show row counts for the question banks, results and vocabulary tables.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			container, err := env.Container(ctx)
			if err != nil {
				return err
			}
			return printStats(ctx, cmd, container.GetDatabase())
		},
	}
}

// statTables lists the tables reported by db stats
func statTables() []string {
	tables := append([]string{"entries", "masteries", "passages", "game_results"}, models.QuestionTables()...)
	for _, kind := range models.AllGameKinds() {
		if spec, _ := kind.Spec(); spec.ResultTable != "" {
			tables = append(tables, spec.ResultTable)
		}
	}
	return tables
}

func printStats(ctx context.Context, cmd *cobra.Command, db *sql.DB) error {
	fmt.Fprintln(cmd.OutOrStdout(), getDatabaseInfo(ctx, db))

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tROWS")
	for _, table := range statTables() {
		var count int
		// Table names come from the fixed game registry
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to count %s: %v", table, err)
		}
		fmt.Fprintf(w, "%s\t%d\n", table, count)
	}
	return w.Flush()
}
