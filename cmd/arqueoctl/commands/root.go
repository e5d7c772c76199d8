// Package commands implements arqueoctl, the operator CLI: schema migrations,
// development seed data and development tokens.
package commands

import (
	"os"
	"time"

	"arqueo/internal/config"
	"arqueo/internal/infra"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	cfg         *config.Config
	databaseURL string
)

func Execute() error {
	root := &cobra.Command{
		Use:           "arqueoctl",
		Short:         "Operator tooling for the cash reconciliation service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
			c, err := config.Load()
			if err != nil {
				return err
			}
			if databaseURL != "" {
				c.DatabaseURL = databaseURL
			}
			cfg = c
			return nil
		},
	}

	root.PersistentFlags().StringVar(&databaseURL, "database-url", "", "override DATABASE_URL")

	root.AddCommand(migrateCmd(), seedCmd(), tokenCmd())
	return root.Execute()
}

func openDB() (*gorm.DB, error) {
	return infra.NewDatabase(cfg.DatabaseURL)
}
