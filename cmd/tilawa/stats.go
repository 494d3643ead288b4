package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/varoOP/tilawa/internal/app"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		notify, _ := cmd.Flags().GetBool("notify")

		application, err := app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		stats, err := application.Stats(cmd.Context(), notify)
		if err != nil {
			return err
		}

		fmt.Printf("Cached recitations: %d (surahs: %d, ayahs: %d)\n", stats.TotalEntries, stats.SurahEntries, stats.AyahEntries)
		fmt.Printf("Active reciters: %d\n", stats.ActiveReciters)

		ids := make([]string, 0, len(stats.PerReciter))
		for id := range stats.PerReciter {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Printf("  reciter %s: %d\n", id, stats.PerReciter[id])
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().Bool("notify", false, "also send the statistics to the Discord webhook")
	rootCmd.AddCommand(statsCmd)
}
