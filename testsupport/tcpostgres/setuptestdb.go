//nolint:errcheck // testsetup
package tcpostgres

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mpapenbr/lapviewer-go/pkg/db/migrate"
	database "github.com/mpapenbr/lapviewer-go/pkg/db/postgres"
)

// SetupTestDB starts a postgres container, applies the migrations and returns
// a pool for it.
func SetupTestDB() (*pgxpool.Pool, error) {
	ctx := context.Background()
	container, err := SetupPostgres(ctx, WithName("lapviewer-test"))
	if err != nil {
		return nil, err
	}
	dbURL, err := container.ConnectionString(ctx)
	if err != nil {
		return nil, err
	}
	return setupWithURL(ctx, dbURL)
}

// SetupExternalTestDB uses the database referenced by TESTDB_URL.
func SetupExternalTestDB() (*pgxpool.Pool, error) {
	return setupWithURL(context.Background(), os.Getenv("TESTDB_URL"))
}

func setupWithURL(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	if err := migrate.MigrateDb(dbURL); err != nil {
		return nil, err
	}
	return database.NewPool(ctx, dbURL)
}

func ClearTelemetryTables(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from telemetry_point")
	pool.Exec(context.Background(), "delete from lap")
}

func ClearLandmarkTables(pool *pgxpool.Pool) {
	pool.Exec(context.Background(), "delete from track_segment")
	pool.Exec(context.Background(), "delete from track_turn")
}

func ClearAllTables(pool *pgxpool.Pool) {
	ClearTelemetryTables(pool)
	ClearLandmarkTables(pool)
}
