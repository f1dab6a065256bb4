// Package ingest orchestrates the parse, validate and insert pipeline for one
// uploaded payload.
package ingest

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/openteller/depot/internal/common/depoterrors"
	"github.com/openteller/depot/internal/common/util"
	"github.com/openteller/depot/internal/depot/model"
	"github.com/openteller/depot/internal/depot/normalize"
	"github.com/openteller/depot/internal/depot/parse"
	"github.com/openteller/depot/internal/depot/schema"
)

// Sink is the destination rows are loaded into. *loader.Loader is the
// production implementation.
type Sink interface {
	Insert(ctx context.Context, ds *schema.Dataset, rows []model.Row) (int, error)
	Clear(ctx context.Context, ds *schema.Dataset) error
}

type Ingester struct {
	registry *schema.Registry
	sink     Sink
}

func NewIngester(registry *schema.Registry, sink Sink) *Ingester {
	return &Ingester{registry: registry, sink: sink}
}

// Ingest runs one upload through the full pipeline and returns the number of
// logical rows inserted. Validation is all-or-nothing: any data-quality
// problem anywhere in the payload means zero rows are written and every
// problem found is reported at once. REPLACE mode clears the dataset before
// inserting; APPEND adds to whatever is present.
func (i *Ingester) Ingest(ctx context.Context, datasetName string, raw []byte, mode model.IngestMode) (int, error) {
	if mode != model.IngestAppend && mode != model.IngestReplace {
		return 0, &depoterrors.ErrInvalidArgument{
			Name: "mode", Value: string(mode), Message: "mode must be APPEND or REPLACE",
		}
	}

	d, err := i.registry.Get(datasetName)
	if err != nil {
		return 0, err
	}

	logger := log.WithFields(log.Fields{
		"ingestId": util.NewULID(),
		"dataset":  d.Name,
		"mode":     string(mode),
	})

	rows, err := parse.Parse(raw, d)
	if err != nil {
		logger.WithError(err).Warn("upload rejected")
		return 0, err
	}

	normalized, validationErrors := normalize.Normalize(rows, d)
	if len(validationErrors) > 0 {
		logger.Warnf("upload rejected: %d validation error(s) across %d logical rows",
			len(validationErrors), len(rows))
		return 0, &depoterrors.ErrValidationFailed{Errors: validationErrors}
	}

	if mode == model.IngestReplace {
		if err := i.sink.Clear(ctx, d); err != nil {
			logger.WithError(err).Error("clearing dataset failed")
			return 0, err
		}
	}

	count, err := i.sink.Insert(ctx, d, normalized)
	if err != nil {
		logger.WithError(err).Error("inserting upload failed, transaction rolled back")
		return 0, err
	}

	logger.Infof("ingested %d logical rows", count)
	return count, nil
}
