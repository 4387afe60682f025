package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Checkpoint returns the last scraped MRCI date, seeding the checkpoint row
// with DefaultMRCIStart on first use.
func (s Store) Checkpoint(ctx context.Context) (time.Time, error) {
	var raw any
	err := s.db.QueryRowContext(
		ctx, `SELECT last_date FROM scrape_log_mrci WHERE id = 1`,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		err := s.SetCheckpoint(ctx, DefaultMRCIStart)
		if err != nil {
			return time.Time{}, err
		}
		return DefaultMRCIStart, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return scanDate(raw)
}

// SetCheckpoint records d as the last scraped MRCI date.
func (s Store) SetCheckpoint(ctx context.Context, d time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_log_mrci (id, last_date, updated_at)
		VALUES (1, $1, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			last_date = excluded.last_date,
			updated_at = CURRENT_TIMESTAMP
	`, DateOf(d))
	return err
}

// date columns come back as time.Time from pgx and as text from sqlite
func scanDate(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return DateOf(v), nil
	case string:
		return parseDateString(v)
	case []byte:
		return parseDateString(string(v))
	}
	return time.Time{}, fmt.Errorf("unexpected date type %T", raw)
}

func parseDateString(v string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02",
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05.999999999-07:00",
		time.RFC3339,
	} {
		t, err := time.Parse(layout, v)
		if err == nil {
			return DateOf(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", v)
}
