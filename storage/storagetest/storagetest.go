// Package storagetest opens a migrated Postgres gateway for integration
// tests. Tests using it are skipped unless TEST_DATABASE_URL is set.
package storagetest

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"game-records-api/models"
	"game-records-api/storage"

	"github.com/charmbracelet/log"
)

var testOptions = storage.Options{
	MaxConns:         4,
	IdleTimeout:      time.Minute,
	AcquireTimeout:   2 * time.Second,
	StatementTimeout: 10 * time.Second,
	AcquireRetries:   1,
}

// Open returns a gateway whose tables live in a fresh schema, dropped
// when the test ends.
func Open(t testing.TB) *storage.Postgres {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	logger := log.New(io.Discard)

	admin, err := storage.Open(ctx, dsn, testOptions, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	schema := fmt.Sprintf("records_test_%d", time.Now().UnixNano())
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		admin.Close()
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		admin.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+schema+" CASCADE")
		admin.Close()
	})

	scoped, err := withSearchPath(dsn, schema)
	if err != nil {
		t.Fatalf("scope dsn: %v", err)
	}
	gw, err := storage.Open(ctx, scoped, testOptions, logger)
	if err != nil {
		t.Fatalf("open %s: %v", schema, err)
	}
	// Registered after the schema cleanup, so it runs first.
	t.Cleanup(func() { gw.Close() })

	if err := gw.AutoMigrate(ctx, models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gw
}

func withSearchPath(dsn, schema string) (string, error) {
	if !strings.Contains(dsn, "://") {
		return dsn + " search_path=" + schema, nil
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
