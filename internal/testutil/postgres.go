// Package testutil starts throwaway infrastructure for repository integration tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"github.com/BenGovier/RewardLabsStaging-sub001/pkg/database"
)

// NewPostgres starts a disposable Postgres container, applies the migrations and returns a pool.
// The test is skipped under -short or when Docker is not reachable.
func NewPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Postgres integration test in -short mode")
	}

	dock, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	if err := dock.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}

	resource, err := dock.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=raffily",
			"POSTGRES_PASSWORD=secret",
			"POSTGRES_DB=raffily_test",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Skipf("start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = dock.Purge(resource) })
	_ = resource.Expire(180)

	ctx := context.Background()
	dsn := fmt.Sprintf("postgres://raffily:secret@%s/raffily_test?sslmode=disable", resource.GetHostPort("5432/tcp"))
	dock.MaxWait = 90 * time.Second
	var pool *pgxpool.Pool
	err = dock.Retry(func() error {
		p, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		t.Fatalf("connect to postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}
