package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/varoOP/tilawa/internal/app"
	"github.com/varoOP/tilawa/internal/domain"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <surah|surah:ayah>",
	Short: "Deliver a recitation, uploading it on a cache miss",
	Long: `Fetch resolves a recitation the same way the bot does: a cached recitation
is returned as is, a missing one is downloaded, uploaded to the storage channel
and cached.

Examples:
  tilawa fetch 2
  tilawa fetch 6:12 --reciter 3 --lang uz`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		surah, ayah, err := domain.ParseQuery(args[0])
		if err != nil {
			return err
		}

		reciterID, _ := cmd.Flags().GetString("reciter")
		lang, _ := cmd.Flags().GetString("lang")
		asJSON, _ := cmd.Flags().GetBool("json")

		application, err := app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		if err := application.Config().ValidateStorage(); err != nil {
			return err
		}

		rc, err := application.Reciters.Get(cmd.Context(), reciterID)
		if err != nil {
			return err
		}

		d, err := application.Delivery.Deliver(cmd.Context(), domain.DeliveryRequest{
			Reciter:  *rc,
			Surah:    surah,
			Ayah:     ayah,
			Language: lang,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", domain.CategoryOf(err), err)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(d)
		}

		fmt.Printf("%s (%s)\n%s\n\n%s\n", d.Title, d.State, d.ContentReference, d.Caption)
		return nil
	},
}

func init() {
	fetchCmd.Flags().String("reciter", "1", "reciter identifier")
	fetchCmd.Flags().String("lang", "", "caption language (defaults to default_language)")
	fetchCmd.Flags().Bool("json", false, "print the delivery as JSON")
	rootCmd.AddCommand(fetchCmd)
}
