package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/varoOP/tilawa/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate-legacy <database>",
	Short: "Import the cache of the earlier bot",
	Long: `Import reciters and cached recitations from the SQLite database of the earlier bot.
Cached captions for ru and uz are carried over; the legacy database is only read.

This is a one-time migration. Entries already in the store for the same
recitation are overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		result, err := application.MigrateLegacy(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		fmt.Printf("\n✓ Migration complete!\n")
		fmt.Printf("  Reciters:  %d\n", result.Reciters)
		fmt.Printf("  Imported:  %d\n", result.Migrated)
		fmt.Printf("  Skipped:   %d\n", result.Skipped)
		fmt.Printf("  The old database (%s) can be kept for backup or removed.\n\n", args[0])

		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
