package util

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
	"github.com/pgx-contrib/pgxtrace"
	"github.com/stephenafamo/bob"

	"github.com/mpapenbr/lapviewer-go/log"
	"github.com/mpapenbr/lapviewer-go/pkg/config"
	"github.com/mpapenbr/lapviewer-go/pkg/db/postgres"
	"github.com/mpapenbr/lapviewer-go/pkg/telemetry"
	"github.com/mpapenbr/lapviewer-go/pkg/telemetry/fetch/graphql"
	natsFetch "github.com/mpapenbr/lapviewer-go/pkg/telemetry/fetch/nats"
	pgFetch "github.com/mpapenbr/lapviewer-go/pkg/telemetry/fetch/postgres"
	"github.com/mpapenbr/lapviewer-go/pkg/utils"
)

var ErrConfig = errors.New("invalid configuration")

// Backends holds the connections to external services. Unused ones are nil.
type Backends struct {
	Pool  *pgxpool.Pool
	sqlDB *sql.DB
	DB    bob.Executor
	Nats  *nats.Conn
}

// Connect opens the connections required by cfg.
//
//nolint:whitespace // can't make both editor and linter happy
func Connect(
	ctx context.Context,
	cfg *config.Config,
	sqlLogger *log.Logger,
	withOtlp bool,
) (*Backends, error) {
	ret := &Backends{}
	if cfg.NeedsDB() {
		pgTracer := pgxtrace.CompositeQueryTracer{
			postgres.NewMyTracer(sqlLogger, log.DebugLevel),
		}
		if withOtlp {
			pgTracer = append(pgTracer, postgres.NewOtlpTracer())
		}
		pool, err := postgres.NewPool(ctx, config.DB, postgres.WithTracer(pgTracer))
		if err != nil {
			return nil, fmt.Errorf("database: %w", err)
		}
		ret.Pool = pool
		ret.sqlDB = stdlib.OpenDBFromPool(pool)
		ret.DB = bob.NewDB(ret.sqlDB)
	}
	if cfg.NeedsNats() {
		conn, err := nats.Connect(config.NatsURL,
			nats.Name("lapviewer"),
			nats.MaxReconnects(-1))
		if err != nil {
			ret.Close()
			return nil, fmt.Errorf("nats: %w", err)
		}
		ret.Nats = conn
	}
	return ret, nil
}

func (b *Backends) Close() {
	if b.Nats != nil {
		if err := b.Nats.Drain(); err != nil {
			log.Warn("nats drain", log.ErrorField(err))
		}
	}
	if b.Pool != nil {
		b.sqlDB.Close()
		b.Pool.Close()
	}
}

// NewFetcher creates the telemetry backend selected by cfg.Fetcher.
func NewFetcher(cfg *config.Config, b *Backends) (telemetry.Fetcher, error) {
	switch cfg.Fetcher {
	case config.FetcherGraphQL:
		return graphql.New(
			graphql.WithURL(config.GraphQLURL),
			graphql.WithTimeout(cfg.FetchTimeout)), nil
	case config.FetcherPostgres:
		return pgFetch.New(b.DB), nil
	case config.FetcherNats:
		return natsFetch.NewFetcher(b.Nats,
			natsFetch.WithTimeout(cfg.FetchTimeout),
			natsFetch.WithBucket(config.NatsBucket))
	}
	return nil, fmt.Errorf("%w: unknown fetcher %q", ErrConfig, cfg.Fetcher)
}

// WaitForRequiredServices blocks until the services used by cfg accept
// connections. Errors are fatal.
func WaitForRequiredServices(ctx context.Context, cfg *config.Config) {
	timeout := config.ParseDuration(config.WaitForServices, 60*time.Second)

	addrs := []string{}
	if cfg.NeedsDB() {
		addrs = append(addrs, utils.ExtractAddr(config.DB))
	}
	if cfg.NeedsNats() {
		addrs = append(addrs, utils.ExtractAddr(config.NatsURL))
	}
	wg := sync.WaitGroup{}
	for _, addr := range addrs {
		if addr == "" {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := utils.WaitForTCP(ctx, addr, timeout); err != nil {
				log.Fatal("required services not ready", log.ErrorField(err))
			}
		}()
	}
	if cfg.Fetcher == config.FetcherGraphQL {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// the graphql service is optional at startup, failed fetches are reported per lap
			if err := utils.WaitForHTTPResponse(ctx, config.GraphQLURL, timeout); err != nil {
				log.Warn("graphql service not reachable", log.ErrorField(err))
			}
		}()
	}
	log.Debug("Waiting for connection checks to return")
	wg.Wait()
	log.Debug("Required services are available")
}

// AppConfig collects the processed values of the config variables.
func AppConfig() (*config.Config, error) {
	ret := &config.Config{
		Fetcher:         config.Fetcher,
		FetchTimeout:    config.ParseDuration(config.FetchTimeout, 30*time.Second),
		LandmarksSource: config.LandmarksSource,
		ServeNats:       config.ServeNats,
	}
	if ret.ServeNats && ret.Fetcher == config.FetcherNats {
		return nil, fmt.Errorf("%w: --serve-nats needs a non-nats fetcher", ErrConfig)
	}
	switch ret.LandmarksSource {
	case "", config.LandmarksFromFile, config.LandmarksFromPostgres:
	default:
		return nil, fmt.Errorf("%w: unknown landmarks source %q", ErrConfig,
			ret.LandmarksSource)
	}
	return ret, nil
}
