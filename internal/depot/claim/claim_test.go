package claim

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openteller/depot/internal/common/database"
	"github.com/openteller/depot/internal/common/depoterrors"
	"github.com/openteller/depot/internal/depot/loader"
	"github.com/openteller/depot/internal/depot/model"
	"github.com/openteller/depot/internal/depot/schema"
)

var claimDataset = &schema.Dataset{
	Name: "claim_test",
	Columns: []schema.Column{
		{Name: "client_id", Required: true, Rule: schema.RuleStripUpper},
		{Name: "account_number", Required: true, Rule: schema.RuleStripUpper},
		{Name: "amount", Rule: schema.RuleTrim},
	},
	Source:    schema.Source{Kind: schema.SourceDelimited, Delimiter: '|'},
	Claimable: true,
}

var claimRegistry = schema.NewRegistry(claimDataset)

func TestFindAndClaimRequiresFilters(t *testing.T) {
	engine := NewEngine(nil, claimRegistry)
	_, err := engine.FindAndClaim(context.Background(), "claim_test", map[string]interface{}{}, true)

	var invalid *depoterrors.ErrInvalidArgument
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "filters", invalid.Name)
}

func TestFindAndClaimUnknownDataset(t *testing.T) {
	engine := NewEngine(nil, claimRegistry)
	_, err := engine.FindAndClaim(context.Background(), "nope",
		map[string]interface{}{"client_id": "C1"}, true)
	assert.True(t, depoterrors.IsNotFound(err))
}

func TestFindAndClaimUnknownColumn(t *testing.T) {
	engine := NewEngine(nil, claimRegistry)
	_, err := engine.FindAndClaim(context.Background(), "claim_test",
		map[string]interface{}{"no_such_column": "x"}, true)

	var invalid *depoterrors.ErrInvalidArgument
	require.ErrorAs(t, err, &invalid)
}

func TestFindAndClaimRejectsUnsupportedFilterTypes(t *testing.T) {
	engine := NewEngine(nil, claimRegistry)
	_, err := engine.FindAndClaim(context.Background(), "claim_test",
		map[string]interface{}{"client_id": 42}, true)

	var invalid *depoterrors.ErrInvalidArgument
	require.ErrorAs(t, err, &invalid)
}

func TestFindAndClaimNotClaimableDataset(t *testing.T) {
	listing := &schema.Dataset{
		Name:    "listing_only",
		Columns: []schema.Column{{Name: "code"}},
		Source:  schema.Source{Kind: schema.SourceDelimited, Delimiter: '|'},
	}
	engine := NewEngine(nil, schema.NewRegistry(listing))
	_, err := engine.FindAndClaim(context.Background(), "listing_only",
		map[string]interface{}{"code": "x"}, true)

	var invalid *depoterrors.ErrInvalidArgument
	require.ErrorAs(t, err, &invalid)
}

func seedRows(ctx context.Context, t *testing.T, db *pgxpool.Pool, clientIds ...string) {
	t.Helper()
	rows := make([]model.Row, len(clientIds))
	for i, clientId := range clientIds {
		clientId := clientId
		account := fmt.Sprintf("ACC%d", i+1)
		amount := "100.00"
		rows[i] = model.Row{
			SourceRow: i + 2,
			Values:    []*string{&clientId, &account, &amount},
		}
	}
	_, err := loader.New(db, 0, 0).Insert(ctx, claimDataset, rows)
	require.NoError(t, err)
}

func TestClaimMarksUsed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := database.WithTestDb(func(db *pgxpool.Pool, goquDb *goqu.Database) error {
		seedRows(ctx, t, db, "C1", "C1", "C2")
		engine := NewEngine(goquDb, claimRegistry)
		filters := map[string]interface{}{"client_id": "C1"}

		// First claim dispenses the first inserted row.
		first, err := engine.FindAndClaim(ctx, "claim_test", filters, true)
		require.NoError(t, err)
		assert.Equal(t, "ACC1", first.Value("account_number"))
		assert.True(t, first.Used)
		assert.Equal(t, 1, first.TimesUsed)

		// Second claim must not see the consumed row.
		second, err := engine.FindAndClaim(ctx, "claim_test", filters, true)
		require.NoError(t, err)
		assert.Equal(t, "ACC2", second.Value("account_number"))

		// The pool for this filter is now drained.
		_, err = engine.FindAndClaim(ctx, "claim_test", filters, true)
		assert.True(t, depoterrors.IsNotFound(err))

		// The other client's row is untouched.
		other, err := engine.FindAndClaim(ctx, "claim_test",
			map[string]interface{}{"client_id": "C2"}, true)
		require.NoError(t, err)
		assert.Equal(t, "C2", other.Value("client_id"))
		return nil
	})
	assert.NoError(t, err)
}

func TestPeekDoesNotConsume(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := database.WithTestDb(func(db *pgxpool.Pool, goquDb *goqu.Database) error {
		seedRows(ctx, t, db, "C1")
		engine := NewEngine(goquDb, claimRegistry)
		filters := map[string]interface{}{"client_id": "C1"}

		for i := 0; i < 3; i++ {
			record, err := engine.FindAndClaim(ctx, "claim_test", filters, false)
			require.NoError(t, err)
			assert.False(t, record.Used)
			assert.Equal(t, 0, record.TimesUsed)
		}

		// The row is still claimable afterwards.
		record, err := engine.FindAndClaim(ctx, "claim_test", filters, true)
		require.NoError(t, err)
		assert.True(t, record.Used)
		assert.Equal(t, 1, record.TimesUsed)
		return nil
	})
	assert.NoError(t, err)
}

func TestConcurrentClaimsDispenseEachRowOnce(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := database.WithTestDb(func(db *pgxpool.Pool, goquDb *goqu.Database) error {
		seedRows(ctx, t, db, "C1")
		engine := NewEngine(goquDb, claimRegistry)
		filters := map[string]interface{}{"client_id": "C1"}

		var wg sync.WaitGroup
		results := make([]error, 2)
		for i := 0; i < 2; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, results[i] = engine.FindAndClaim(ctx, "claim_test", filters, true)
			}()
		}
		wg.Wait()

		succeeded := 0
		notFound := 0
		for _, err := range results {
			switch {
			case err == nil:
				succeeded++
			case depoterrors.IsNotFound(err):
				notFound++
			default:
				require.NoError(t, err)
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, notFound)

		// The single row was claimed exactly once.
		var timesUsed int
		row := db.QueryRow(ctx, "SELECT times_used FROM claim_test")
		require.NoError(t, row.Scan(&timesUsed))
		assert.Equal(t, 1, timesUsed)
		return nil
	})
	assert.NoError(t, err)
}

func TestUsedFilterFindsConsumedRows(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := database.WithTestDb(func(db *pgxpool.Pool, goquDb *goqu.Database) error {
		seedRows(ctx, t, db, "C1")
		engine := NewEngine(goquDb, claimRegistry)

		_, err := engine.FindAndClaim(ctx, "claim_test",
			map[string]interface{}{"client_id": "C1"}, true)
		require.NoError(t, err)

		// Diagnostic peek at the consumed row.
		record, err := engine.FindAndClaim(ctx, "claim_test",
			map[string]interface{}{"used": true}, false)
		require.NoError(t, err)
		assert.True(t, record.Used)
		assert.Equal(t, 1, record.TimesUsed)
		return nil
	})
	assert.NoError(t, err)
}

func TestClaimNullColumnsRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := database.WithTestDb(func(db *pgxpool.Pool, goquDb *goqu.Database) error {
		clientId := "C1"
		account := "ACC1"
		rows := []model.Row{{SourceRow: 2, Values: []*string{&clientId, &account, nil}}}
		_, err := loader.New(db, 0, 0).Insert(ctx, claimDataset, rows)
		require.NoError(t, err)

		engine := NewEngine(goquDb, claimRegistry)
		record, err := engine.FindAndClaim(ctx, "claim_test",
			map[string]interface{}{"client_id": "C1"}, true)
		require.NoError(t, err)
		assert.Nil(t, record.Values["amount"])
		assert.Equal(t, "", record.Value("amount"))
		return nil
	})
	assert.NoError(t, err)
}
