package testutil

import (
	"context"
	"database/sql"
	"testing"

	"seasonality-backend/internal/store"
	"seasonality-backend/lib/telemetry"

	_ "modernc.org/sqlite"
)

type StoreResult struct {
	Store store.Store
	DB    *sql.DB
}

// SetupStore opens an in-memory sqlite database, applies the shared schema
// and returns a ready store. The schema is written against the dialect
// intersection of Postgres and sqlite, so everything exercised here behaves
// the same way in production.
func SetupStore(t testing.TB, name string) (StoreResult, func()) {
	cleanup := telemetry.SetupForTesting(t, name)

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}

	s := store.New(db)
	err = s.Init(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	return StoreResult{Store: s, DB: db}, func() {
		db.Close()
		cleanup()
	}
}
