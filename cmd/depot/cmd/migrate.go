package cmd

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openteller/depot/internal/common/database"
	"github.com/openteller/depot/internal/depot/loader"
	"github.com/openteller/depot/internal/depot/schema"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Creates or updates the backing tables for every registered dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		config := loadConfiguration()

		db, err := database.OpenPgxPool(config.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()

		l := loader.New(db, config.Ingest.MaxBoundParams, config.Ingest.BatchSize)
		for _, d := range schema.Default().All() {
			if err := l.EnsureTable(cmd.Context(), d); err != nil {
				return err
			}
			log.Infof("ensured table for dataset %s", d.Name)
		}
		return nil
	},
}
