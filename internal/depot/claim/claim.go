// Package claim dispenses records to downstream consumers. A claim finds the
// first unclaimed row matching the caller's filters and atomically marks it
// used, so two concurrent claimants can never receive the same row.
package claim

import (
	"context"
	"database/sql"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/openteller/depot/internal/common/depoterrors"
	"github.com/openteller/depot/internal/depot/model"
	"github.com/openteller/depot/internal/depot/schema"
)

// maxLookupAttempts bounds the claim-race retry loop. Exhausting it means the
// matching rows were drained by concurrent claimants between our lookups,
// which is indistinguishable from there being no match at all.
const maxLookupAttempts = 5

type Engine struct {
	db       *goqu.Database
	registry *schema.Registry
}

func NewEngine(db *goqu.Database, registry *schema.Registry) *Engine {
	return &Engine{db: db, registry: registry}
}

// matchedRow is one selected row with the internal identifier it was matched
// under. The update step targets this identifier specifically, never the
// filters again, so data changing between select and update cannot redirect
// the claim to a different row.
type matchedRow struct {
	id        int64
	cells     []sql.NullString
	used      bool
	timesUsed int
}

// FindAndClaim returns one record matching the supplied filters. Filters are
// conjunctive equality on declared columns (string values), plus the used
// column (bool values) for diagnostic lookups. With markUsed the record is
// atomically marked consumed before it is returned; without it the row is
// returned unmodified and stays eligible for a future claim.
func (e *Engine) FindAndClaim(ctx context.Context, dataset string, filters map[string]interface{}, markUsed bool) (*model.Record, error) {
	d, err := e.registry.Get(dataset)
	if err != nil {
		return nil, err
	}
	if !d.Claimable {
		return nil, &depoterrors.ErrInvalidArgument{
			Name: "dataset", Value: dataset, Message: "dataset is not claimable",
		}
	}
	if len(filters) == 0 {
		return nil, &depoterrors.ErrInvalidArgument{
			Name: "filters", Value: filters, Message: "at least one filter is required",
		}
	}

	exprs, err := filterExpressions(d, filters)
	if err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxLookupAttempts; attempt++ {
		row, err := e.lookup(ctx, d, exprs, markUsed)
		if err != nil {
			return nil, err
		}
		if !markUsed {
			return record(d, row), nil
		}

		timesUsed, claimed, err := e.claimRow(ctx, d, row.id)
		if err != nil {
			return nil, err
		}
		if claimed {
			result := record(d, row)
			result.Used = true
			result.TimesUsed = timesUsed
			return result, nil
		}

		// A concurrent claimant marked this row between our select and
		// update. The row we read can no longer be trusted; look up again.
		log.WithField("dataset", d.Name).
			Debugf("lost claim race, retrying lookup (attempt %d of %d)", attempt, maxLookupAttempts)
	}

	return nil, &depoterrors.ErrNotFound{Type: "record", Value: dataset}
}

func filterExpressions(d *schema.Dataset, filters map[string]interface{}) ([]goqu.Expression, error) {
	exprs := make([]goqu.Expression, 0, len(filters)+1)
	for column, value := range filters {
		switch v := value.(type) {
		case string:
			if _, ok := d.Column(column); !ok {
				return nil, &depoterrors.ErrInvalidArgument{
					Name: "filters", Value: column,
					Message: "dataset " + d.Name + " has no such column",
				}
			}
			exprs = append(exprs, goqu.C(column).Eq(v))
		case bool:
			if column != "used" {
				return nil, &depoterrors.ErrInvalidArgument{
					Name: "filters", Value: column,
					Message: "boolean filters are only supported on the used column",
				}
			}
			if v {
				exprs = append(exprs, goqu.C("used").IsTrue())
			} else {
				exprs = append(exprs, goqu.C("used").IsNotTrue())
			}
		default:
			return nil, &depoterrors.ErrInvalidArgument{
				Name: "filters", Value: value,
				Message: "filter values must be strings or booleans",
			}
		}
	}
	return exprs, nil
}

// lookup selects the first matching row by insertion order. With onlyUnused
// an implicit NOT used predicate restricts matches to unclaimed rows.
func (e *Engine) lookup(ctx context.Context, d *schema.Dataset, exprs []goqu.Expression, onlyUnused bool) (*matchedRow, error) {
	where := exprs
	if onlyUnused {
		where = append(append([]goqu.Expression{}, exprs...), goqu.C("used").IsNotTrue())
	}

	selection := []interface{}{goqu.C("id")}
	for _, name := range d.ColumnNames() {
		selection = append(selection, goqu.C(name))
	}
	selection = append(selection, goqu.C("used"), goqu.C("times_used"))

	query, args, err := e.db.From(d.Name).
		Select(selection...).
		Where(where...).
		Order(goqu.C("id").Asc()).
		Limit(1).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "looking up record in %s", d.Name)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, errors.Wrapf(err, "looking up record in %s", d.Name)
		}
		return nil, &depoterrors.ErrNotFound{Type: "record", Value: d.Name}
	}

	row := &matchedRow{cells: make([]sql.NullString, len(d.Columns))}
	dest := make([]interface{}, 0, len(d.Columns)+3)
	dest = append(dest, &row.id)
	for i := range row.cells {
		dest = append(dest, &row.cells[i])
	}
	dest = append(dest, &row.used, &row.timesUsed)
	if err := rows.Scan(dest...); err != nil {
		return nil, errors.Wrapf(err, "scanning record from %s", d.Name)
	}
	return row, nil
}

// claimRow marks the row used with a single conditional statement guarded by
// the same still-unused predicate. Zero rows affected means a concurrent
// claim won the race. This conditional-update discipline is what makes the
// at-most-one-claim guarantee hold without a serializable transaction.
func (e *Engine) claimRow(ctx context.Context, d *schema.Dataset, id int64) (int, bool, error) {
	query, args, err := e.db.Update(d.Name).
		Set(goqu.Record{
			"used":       true,
			"times_used": goqu.L("times_used + 1"),
		}).
		Where(goqu.C("id").Eq(id), goqu.C("used").IsNotTrue()).
		Returning(goqu.C("times_used")).
		Prepared(true).
		ToSQL()
	if err != nil {
		return 0, false, errors.WithStack(err)
	}

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, false, errors.Wrapf(err, "claiming record in %s", d.Name)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, false, errors.Wrapf(err, "claiming record in %s", d.Name)
		}
		return 0, false, nil
	}

	var timesUsed int
	if err := rows.Scan(&timesUsed); err != nil {
		return 0, false, errors.Wrapf(err, "scanning claim result from %s", d.Name)
	}
	return timesUsed, true, nil
}

func record(d *schema.Dataset, row *matchedRow) *model.Record {
	values := make(map[string]*string, len(d.Columns))
	for i, c := range d.Columns {
		if row.cells[i].Valid {
			v := row.cells[i].String
			values[c.Name] = &v
		} else {
			values[c.Name] = nil
		}
	}
	return &model.Record{
		Dataset:   d.Name,
		Values:    values,
		Used:      row.used,
		TimesUsed: row.timesUsed,
	}
}
