// Package loader writes normalized rows into the backing store. All batches
// of one upload run inside a single transaction, so a failure anywhere rolls
// the whole upload back and a retry is always safe.
package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/openteller/depot/internal/depot/model"
	"github.com/openteller/depot/internal/depot/schema"
)

type Loader struct {
	db             *pgxpool.Pool
	maxBoundParams int
	batchSize      int
}

func New(db *pgxpool.Pool, maxBoundParams, batchSize int) *Loader {
	if maxBoundParams <= 0 {
		maxBoundParams = DefaultMaxBoundParams
	}
	return &Loader{db: db, maxBoundParams: maxBoundParams, batchSize: batchSize}
}

// EnsureTable lazily creates the dataset's backing table: the declared
// columns as nullable text plus the claim-tracking columns for claimable
// datasets. It is idempotent and tolerates columns added to the descriptor
// after the table was first created.
func (l *Loader) EnsureTable(ctx context.Context, ds *schema.Dataset) error {
	columns := []string{"id bigserial PRIMARY KEY"}
	for _, c := range ds.Columns {
		columns = append(columns, c.Name+" text")
	}
	if ds.Claimable {
		columns = append(columns,
			"used boolean NOT NULL DEFAULT false",
			"times_used int NOT NULL DEFAULT 0")
	}

	_, err := l.db.Exec(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (%s)", ds.Name, strings.Join(columns, ", ")))
	if err != nil {
		return errors.Wrapf(err, "creating table %s", ds.Name)
	}

	for _, c := range ds.Columns {
		_, err := l.db.Exec(ctx, fmt.Sprintf(
			"ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s text", ds.Name, c.Name))
		if err != nil {
			return errors.Wrapf(err, "adding column %s to table %s", c.Name, ds.Name)
		}
	}
	return nil
}

// Insert writes all rows of one upload, batched to stay under the
// bind-parameter ceiling, inside a single transaction. Either every row
// commits or none do.
func (l *Loader) Insert(ctx context.Context, ds *schema.Dataset, rows []model.Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := l.EnsureTable(ctx, ds); err != nil {
		return 0, err
	}

	batchSize := SafeBatchSize(l.maxBoundParams, len(ds.Columns), l.batchSize)
	err := l.db.BeginTxFunc(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for start := 0; start < len(rows); start += batchSize {
			end := start + batchSize
			if end > len(rows) {
				end = len(rows)
			}
			statement, args := insertStatement(ds, rows[start:end])
			if _, err := tx.Exec(ctx, statement, args...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrapf(err, "inserting %d rows into %s", len(rows), ds.Name)
	}

	log.WithField("dataset", ds.Name).Infof("inserted %d rows in batches of up to %d", len(rows), batchSize)
	return len(rows), nil
}

// Clear removes every row of the dataset. It is the only deletion path and
// is idempotent; REPLACE-mode ingestion calls it before inserting.
func (l *Loader) Clear(ctx context.Context, ds *schema.Dataset) error {
	if err := l.EnsureTable(ctx, ds); err != nil {
		return err
	}
	_, err := l.db.Exec(ctx, "DELETE FROM "+ds.Name)
	if err != nil {
		return errors.Wrapf(err, "clearing table %s", ds.Name)
	}
	return nil
}

func insertStatement(ds *schema.Dataset, rows []model.Row) (string, []interface{}) {
	columnCount := len(ds.Columns)
	values := make([]string, len(rows))
	args := make([]interface{}, 0, len(rows)*columnCount)

	for i, row := range rows {
		placeholders := make([]string, columnCount)
		for c := 0; c < columnCount; c++ {
			placeholders[c] = fmt.Sprintf("$%d", i*columnCount+c+1)
			if c < len(row.Values) && row.Values[c] != nil {
				args = append(args, *row.Values[c])
			} else {
				args = append(args, nil)
			}
		}
		values[i] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	statement := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s",
		ds.Name, strings.Join(ds.ColumnNames(), ", "), strings.Join(values, ", "))
	return statement, args
}
