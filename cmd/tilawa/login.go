package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/varoOP/tilawa/internal/app"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize the storage session",
	Long: `Login signs the storage account in and saves the session file. Telegram
sends a one-time code to the account, which has to be typed in here. Later runs
reuse the saved session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer application.Close()

		if err := application.Config().ValidateStorage(); err != nil {
			return err
		}

		reader := bufio.NewReader(os.Stdin)
		prompt := func(ctx context.Context) (string, error) {
			fmt.Fprint(os.Stderr, "Enter the code Telegram sent: ")
			code, err := reader.ReadString('\n')
			if err != nil {
				return "", fmt.Errorf("reading code: %w", err)
			}
			return strings.TrimSpace(code), nil
		}

		if err := application.Session().Login(cmd.Context(), prompt); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		fmt.Println("Storage session saved.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
