package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/varoOP/tilawa/internal/app"
)

var recitersCmd = &cobra.Command{
	Use:   "reciters",
	Short: "List known reciters",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		application, err := app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		reciters, err := application.Reciters.List(cmd.Context(), !all)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "IDENTIFIER\tNAME\tDISPLAY NAME\tACTIVE")
		for _, rc := range reciters {
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", rc.Identifier, rc.Name, rc.DisplayName(), rc.Active)
		}
		return w.Flush()
	},
}

func init() {
	recitersCmd.Flags().Bool("all", false, "include inactive reciters")
	rootCmd.AddCommand(recitersCmd)
}
