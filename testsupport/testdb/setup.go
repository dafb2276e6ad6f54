package testdb

import (
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"

	tcpg "github.com/mpapenbr/lapviewer-go/testsupport/tcpostgres"
)

var (
	once    sync.Once
	pool    *pgxpool.Pool
	initErr error
)

// InitTestDB returns a pool to an empty, migrated test database. The
// database is shared by all tests of a package. Tests are skipped if neither
// TESTDB_URL is set nor docker is available.
func InitTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	external := os.Getenv("TESTDB_URL") != ""
	if !external {
		testcontainers.SkipIfProviderIsNotHealthy(t)
	}
	once.Do(func() {
		if external {
			pool, initErr = tcpg.SetupExternalTestDB()
		} else {
			pool, initErr = tcpg.SetupTestDB()
		}
	})
	if initErr != nil {
		t.Fatalf("initTestDB: %v", initErr)
	}
	tcpg.ClearAllTables(pool)
	return pool
}
