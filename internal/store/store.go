// Package store persists fetched market data. Production runs against
// Postgres through pgx's database/sql driver; tests run the same SQL
// against an in-memory sqlite database, so statements stay inside the
// dialect intersection: $N placeholders in strictly increasing order,
// ON CONFLICT upserts, composite primary keys, CURRENT_TIMESTAMP.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Seed checkpoint for the MRCI scrape, the earliest page worth fetching.
var DefaultMRCIStart = time.Date(2010, 1, 4, 0, 0, 0, 0, time.UTC)

// Open connects to the Postgres database named by dsn. Connections are
// encrypted unless the DSN explicitly picks another sslmode.
func Open(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", withDefaultSSLMode(dsn))
}

func withDefaultSSLMode(dsn string) string {
	if strings.Contains(dsn, "sslmode=") {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err == nil && strings.HasPrefix(u.Scheme, "postgres") {
		q := u.Query()
		q.Set("sslmode", "require")
		u.RawQuery = q.Encode()
		return u.String()
	}
	// key/value form
	return dsn + " sslmode=require"
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) Store {
	return Store{db: db}
}

// Init applies the embedded schema. Every statement is idempotent so this
// runs unconditionally at startup. Statements are executed one at a time
// since pgx's extended protocol rejects multi-statement strings.
func (s Store) Init(ctx context.Context) error {
	for _, stmt := range strings.Split(Schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		_, err := s.db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// EnsureAssets inserts any missing asset rows, naming them
// "<symbol> <kind>". Existing rows are left untouched.
func (s Store) EnsureAssets(ctx context.Context, symbols []string, kind string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO assets (symbol, name)
		VALUES ($1, $2)
		ON CONFLICT (symbol) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, symbol := range symbols {
		_, err := stmt.ExecContext(ctx, symbol, fmt.Sprintf("%s %s", symbol, kind))
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AssetSymbols returns the set of known asset symbols.
func (s Store) AssetSymbols(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol FROM assets`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	symbols := map[string]bool{}
	for rows.Next() {
		var symbol string
		err := rows.Scan(&symbol)
		if err != nil {
			return nil, err
		}
		symbols[symbol] = true
	}
	return symbols, rows.Err()
}

// ContractBar is one day of one futures contract. Volume lands in the
// `value` column, which downstream roll detection keys off of.
type ContractBar struct {
	Symbol    string
	TradeDate time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
	Contract  string
}

func (s Store) UpsertHistorical(ctx context.Context, bars []ContractBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO historical_data
			(symbol, trade_date, open, high, low, close, value, contract)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, trade_date, contract) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			value = excluded.value
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, bar := range bars {
		_, err := stmt.ExecContext(
			ctx,
			bar.Symbol, DateOf(bar.TradeDate),
			bar.Open, bar.High, bar.Low, bar.Close,
			bar.Volume, bar.Contract,
		)
		if err != nil {
			return 0, err
		}
	}
	return len(bars), tx.Commit()
}

// ContinuousBar is one day of an already-continuous series, either a stock
// or a rolled futures series.
type ContinuousBar struct {
	TradeDate time.Time
	Symbol    string
	Open      float64
	High      float64
	Low       float64
	Close     float64
}

func (s Store) UpsertContinuous(ctx context.Context, bars []ContinuousBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO continuous_prices
			(trade_date, symbol, open, high, low, close)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (trade_date, symbol) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, bar := range bars {
		_, err := stmt.ExecContext(
			ctx,
			DateOf(bar.TradeDate), bar.Symbol,
			bar.Open, bar.High, bar.Low, bar.Close,
		)
		if err != nil {
			return 0, err
		}
	}
	return len(bars), tx.Commit()
}

// ContractPrice is one scraped MRCI row. Numeric cells can be blank on the
// source pages, hence the null types.
type ContractPrice struct {
	Symbol       string
	TradeDate    time.Time
	Open         sql.NullFloat64
	High         sql.NullFloat64
	Low          sql.NullFloat64
	Close        sql.NullFloat64
	Volume       sql.NullInt64
	OpenInterest sql.NullInt64
	Contract     string
}

// InsertContractPrices inserts scraped rows, skipping any already present,
// and reports how many were actually inserted.
func (s Store) InsertContractPrices(ctx context.Context, prices []ContractPrice) (int, error) {
	if len(prices) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO mrci_contract_prices
			(symbol, trade_date, open, high, low, close, volume, open_interest, contract)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, trade_date, contract) DO NOTHING
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range prices {
		res, err := stmt.ExecContext(
			ctx,
			p.Symbol, DateOf(p.TradeDate),
			p.Open, p.High, p.Low, p.Close,
			p.Volume, p.OpenInterest, p.Contract,
		)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}
	return inserted, tx.Commit()
}

// DateOf truncates t to a UTC calendar date, the canonical form for every
// trade_date written to the database.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
