// Package pgtest runs integration tests against a throwaway Postgres
// container. Tests skip when Docker is unavailable or with -short.
package pgtest

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/DYArchive/distributed-youtube-tracker/internal/db"
)

var (
	shared   *pgxpool.Pool
	startErr = errors.New("pgtest.Main was not called from TestMain")
)

// Main starts the container, runs the package's tests and tears down.
// Call it from TestMain: os.Exit(pgtest.Main(m)).
func Main(m *testing.M) int {
	flag.Parse()
	if testing.Short() {
		startErr = errors.New("integration tests disabled by -short")
		return m.Run()
	}

	ctx := context.Background()
	container, pool, err := start(ctx)
	if err != nil {
		startErr = err
		log.Printf("pgtest: postgres unavailable, integration tests will skip: %v", err)
		return m.Run()
	}
	shared = pool

	code := m.Run()

	pool.Close()
	if err := testcontainers.TerminateContainer(container); err != nil {
		log.Printf("pgtest: failed to terminate container: %v", err)
	}
	return code
}

func start(ctx context.Context) (c *postgres.PostgresContainer, pool *pgxpool.Pool, err error) {
	defer func() {
		// The Docker provider panics on some hosts without a daemon socket.
		if r := recover(); r != nil {
			err = fmt.Errorf("start container: %v", r)
		}
	}()

	c, err = postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("dyt"),
		postgres.WithUsername("dyt"),
		postgres.WithPassword("password"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("start container: %w", err)
	}

	connStr, err := c.ConnectionString(ctx, "sslmode=disable", "application_name=pgtest")
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, nil, fmt.Errorf("connection string: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	pool, err = db.NewPool(pctx, connStr, db.PoolOptions{MaxConns: 8, MinConns: 1})
	if err != nil {
		_ = c.Terminate(ctx)
		return nil, nil, err
	}

	if err := db.InstallSchema(ctx, pool); err != nil {
		pool.Close()
		_ = c.Terminate(ctx)
		return nil, nil, err
	}
	return c, pool, nil
}

// Pool returns the shared pool with every table emptied, or skips t.
func Pool(t testing.TB) *pgxpool.Pool {
	t.Helper()
	if shared == nil {
		t.Skipf("postgres unavailable: %v", startErr)
	}
	_, err := shared.Exec(context.Background(), `
		TRUNCATE credentials, video_titles, channel_titles, video_contributions,
		         channel_contributions, videos, channels, formats, contributors
		RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("reset tables: %v", err)
	}
	return shared
}

// Contributor inserts a contributor and returns its surrogate key.
func Contributor(t testing.TB, pool *pgxpool.Pool, name string, discordID int64, visible bool) int64 {
	t.Helper()
	var id int64
	err := pool.QueryRow(context.Background(), `
		INSERT INTO contributors (name, discord_id, allow_channel_queries, allow_stats_queries)
		VALUES ($1, $2, $3, $3) RETURNING id`, name, discordID, visible).Scan(&id)
	if err != nil {
		t.Fatalf("insert contributor: %v", err)
	}
	return id
}
