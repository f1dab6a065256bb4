package cmd

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/openteller/depot/internal/common/database"
	"github.com/openteller/depot/internal/common/depoterrors"
	"github.com/openteller/depot/internal/depot/ingest"
	"github.com/openteller/depot/internal/depot/loader"
	"github.com/openteller/depot/internal/depot/model"
	"github.com/openteller/depot/internal/depot/schema"
)

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().Bool(
		"replace", false, "replace all existing rows of the dataset instead of appending")
}

var ingestCmd = &cobra.Command{
	Use:   "ingest dataset file",
	Short: "Validates and loads one export file into a dataset",
	Long: `Validates and loads one export file into a dataset. The upload is
all-or-nothing: if any row fails validation, every problem is reported and no
rows are inserted.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := loadConfiguration()

		raw, err := os.ReadFile(args[1])
		if err != nil {
			return errors.Wrapf(err, "reading %s", args[1])
		}

		db, err := database.OpenPgxPool(config.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()

		mode := model.IngestAppend
		if replace, _ := cmd.Flags().GetBool("replace"); replace {
			mode = model.IngestReplace
		}

		ingester := ingest.NewIngester(
			schema.Default(),
			loader.New(db, config.Ingest.MaxBoundParams, config.Ingest.BatchSize))

		count, err := ingester.Ingest(cmd.Context(), args[0], raw, mode)
		var validationFailed *depoterrors.ErrValidationFailed
		if errors.As(err, &validationFailed) {
			for _, e := range validationFailed.Errors {
				log.Errorf("row %d, column %q, value %q: %s", e.Row, e.Column, e.Value, e.Message)
			}
			return errors.Errorf("upload rejected with %d validation error(s)", len(validationFailed.Errors))
		}
		if err != nil {
			return err
		}

		log.Infof("inserted %d rows into %s", count, args[0])
		return nil
	},
}
