package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/openteller/depot/internal/common/util"
)

// WithTestDb spins up a dedicated Postgres database for testing and passes the
// action both handles the core uses: a pgx pool for the bulk loader and a
// goqu database for the claim engine. The database is dropped afterwards.
// Requires a local Postgres instance (localhost:5432, user postgres).
func WithTestDb(action func(db *pgxpool.Pool, goquDb *goqu.Database) error) error {
	ctx := context.Background()

	// Connect and create a dedicated database for the test
	dbName := "test_" + util.NewULID()
	connectionString := "host=localhost port=5432 user=postgres password=psw sslmode=disable"
	db, err := pgx.Connect(ctx, connectionString)
	if err != nil {
		return errors.WithStack(err)
	}
	defer db.Close(ctx)

	_, err = db.Exec(ctx, "CREATE DATABASE "+dbName)
	if err != nil {
		return errors.WithStack(err)
	}

	// Connect again: this time to the database we just created. This is the
	// database we use for tests.
	testDbPool, err := pgxpool.Connect(ctx, connectionString+" dbname="+dbName)
	if err != nil {
		return errors.WithStack(err)
	}
	defer testDbPool.Close()

	sqlDb, err := sql.Open("postgres", connectionString+" dbname="+dbName)
	if err != nil {
		return errors.WithStack(err)
	}
	defer sqlDb.Close()

	defer func() {
		// disconnect all db users before cleanup
		_, err = db.Exec(ctx,
			`SELECT pg_terminate_backend(pg_stat_activity.pid)
			 FROM pg_stat_activity WHERE pg_stat_activity.datname = '`+dbName+`';`)
		if err != nil {
			fmt.Println("Failed to disconnect users")
		}

		_, err = db.Exec(ctx, "DROP DATABASE "+dbName)
		if err != nil {
			fmt.Println("Failed to drop database")
		}
	}()

	return action(testDbPool, goqu.New("postgres", sqlDb))
}
