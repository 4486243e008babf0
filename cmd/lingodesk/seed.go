package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/lingodesk/lingodesk/pkg/config"
	"github.com/lingodesk/lingodesk/pkg/presenter"
	"github.com/lingodesk/lingodesk/pkg/seed"
	"github.com/lingodesk/lingodesk/pkg/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import the built-in bilingual answer templates into the knowledge store",
	Long: `Import the built-in Chinese/French template answers into the knowledge
store so the bot and the agent suggestions have something to work with on a
fresh database. Importing is idempotent: re-running refreshes the answers
without duplicating entries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "invalid configuration")
		}
		if path, _ := cmd.Flags().GetString("db-path"); path != "" {
			cfg.DBPath = path
		}

		if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
			imported, skipped, err := seed.Import(ctx, discardUpserter{})
			if err != nil {
				return err
			}
			presenter.Info(fmt.Sprintf("Dry run: %d templates would be imported into %s (%d skipped)", imported, cfg.DBPath, skipped))
			return nil
		}

		st, err := store.Open(ctx, cfg.DBPath)
		if err != nil {
			return errors.Wrap(err, "failed to open database")
		}
		defer st.Close()

		imported, skipped, err := seed.Import(ctx, st)
		if err != nil {
			return err
		}

		presenter.Success(fmt.Sprintf("Imported %d templates into %s (%d skipped)", imported, st.Path(), skipped))
		return nil
	},
}

// discardUpserter lets a dry run walk the templates without touching a
// database.
type discardUpserter struct{}

func (discardUpserter) UpsertQA(ctx context.Context, qFR, qZH, aZH, source string) (int64, error) {
	return 0, nil
}

func init() {
	seedCmd.Flags().String("db-path", "", "SQLite database path (defaults to the configured one)")
	seedCmd.Flags().Bool("dry-run", false, "Report what would be imported without writing")
}
