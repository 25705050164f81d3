// Package sqlite persists the query cache on the device so a restarted agent
// can serve the last known schedule before the network comes back.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/internal/querycache"
	"github.com/vogiaan1904/voyage-sync/pkg/logger"

	_ "modernc.org/sqlite"
)

type cacheRepository struct {
	db *sql.DB
	l  logger.Logger
}

var _ querycache.Store = (*cacheRepository)(nil)

// NewCacheRepository opens (or creates) the database at path.
func NewCacheRepository(path string, l logger.Logger) (querycache.Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	r := &cacheRepository{db: db, l: l}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return r, nil
}

func (r *cacheRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		key        TEXT PRIMARY KEY,
		data       BLOB NOT NULL,
		updated_at INTEGER NOT NULL,
		stale      INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := r.db.Exec(schema)
	return err
}

func (r *cacheRepository) Get(ctx context.Context, key models.CacheKey) (querycache.Entry, bool, error) {
	var (
		e       querycache.Entry
		updated int64
		stale   int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT data, updated_at, stale FROM cache_entries WHERE key = ?`, string(key),
	).Scan(&e.Data, &updated, &stale)
	if errors.Is(err, sql.ErrNoRows) {
		return querycache.Entry{}, false, nil
	}
	if err != nil {
		r.l.Errorf(ctx, "sqlite.cacheRepository.Get: %v", err)
		return querycache.Entry{}, false, err
	}

	e.UpdatedAt = time.UnixMilli(updated)
	e.Stale = stale != 0
	return e, true, nil
}

func (r *cacheRepository) Set(ctx context.Context, key models.CacheKey, e querycache.Entry) error {
	stale := 0
	if e.Stale {
		stale = 1
	}
	if e.Data == nil {
		e.Data = []byte{}
	}

	err := retryOp(defaultRetryConfig, func() error {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO cache_entries (key, data, updated_at, stale)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET
			   data = excluded.data,
			   updated_at = excluded.updated_at,
			   stale = excluded.stale`,
			string(key), e.Data, e.UpdatedAt.UnixMilli(), stale,
		)
		return err
	})
	if err != nil {
		r.l.Errorf(ctx, "sqlite.cacheRepository.Set: %v", err)
	}
	return err
}

func (r *cacheRepository) MarkStale(ctx context.Context, prefix models.CacheKey) (int, error) {
	var marked int
	err := retryOp(defaultRetryConfig, func() error {
		marked = 0
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		rows, err := tx.QueryContext(ctx,
			`SELECT key FROM cache_entries WHERE stale = 0 AND substr(key, 1, ?) = ?`,
			len(prefix), string(prefix),
		)
		if err != nil {
			return err
		}
		var keys []string
		for rows.Next() {
			var k string
			if err := rows.Scan(&k); err != nil {
				rows.Close()
				return err
			}
			if prefix.Covers(models.CacheKey(k)) {
				keys = append(keys, k)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, `UPDATE cache_entries SET stale = 1 WHERE key = ?`, k); err != nil {
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		marked = len(keys)
		return nil
	})
	if err != nil {
		r.l.Errorf(ctx, "sqlite.cacheRepository.MarkStale: %v", err)
		return 0, err
	}
	return marked, nil
}

func (r *cacheRepository) Close() error { return r.db.Close() }
