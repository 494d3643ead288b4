package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/varoOP/tilawa/internal/app"
	"github.com/varoOP/tilawa/internal/domain"
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Remove one cached recitation",
	Long: `Invalidate deletes a single cache entry so the next request fetches and
uploads it again. Without --ayah the whole-surah entry is removed; ayah entries
of that surah are left alone.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reciterID, _ := cmd.Flags().GetString("reciter")
		surah, _ := cmd.Flags().GetInt("surah")

		key := domain.SurahKey(reciterID, surah)
		if cmd.Flags().Changed("ayah") {
			ayah, _ := cmd.Flags().GetInt("ayah")
			key = domain.AyahKey(reciterID, surah, ayah)
		}

		application, err := app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		deleted, err := application.Invalidate(cmd.Context(), key)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("no cache entry for %s", key)
		}

		fmt.Printf("Removed %s\n", key)
		return nil
	},
}

func init() {
	invalidateCmd.Flags().String("reciter", "", "reciter identifier")
	invalidateCmd.Flags().Int("surah", 0, "surah number")
	invalidateCmd.Flags().Int("ayah", 0, "ayah number (omit for the whole surah)")
	invalidateCmd.MarkFlagRequired("reciter")
	invalidateCmd.MarkFlagRequired("surah")
	rootCmd.AddCommand(invalidateCmd)
}
