package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"tenderwatch-engine/internal/scrape/util"
)

// DocCache is a sqlite side cache for downloaded result documents, keyed by
// URL. Enrichment re-passes over the same backlog must not hammer the
// portals with repeat downloads.
type DocCache struct {
	db *sql.DB
}

func OpenDocCache(path string) (*DocCache, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // sqlite wants a single writer
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS documents (
  key TEXT PRIMARY KEY,
  url TEXT NOT NULL,
  content_type TEXT NOT NULL,
  bytes BLOB NOT NULL,
  fetched_at TEXT NOT NULL
);`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &DocCache{db: db}, nil
}

func (c *DocCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Fetch returns the document at rawURL, from cache when present. Documents
// larger than 20MB are refused rather than stored.
func (c *DocCache) Fetch(ctx context.Context, hc *http.Client, rawURL string) ([]byte, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("doccache: empty url")
	}
	key := util.HashString(rawURL)

	var cached []byte
	err := c.db.QueryRowContext(ctx, `SELECT bytes FROM documents WHERE key = ? LIMIT 1;`, key).Scan(&cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("doccache: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("doccache: %s status %s", rawURL, resp.Status)
	}

	const max = 20 << 20
	b, err := io.ReadAll(io.LimitReader(resp.Body, max+1))
	if err != nil {
		return nil, fmt.Errorf("doccache: read %s: %w", rawURL, err)
	}
	if len(b) == 0 || len(b) > max {
		return nil, fmt.Errorf("doccache: %s size %d out of bounds", rawURL, len(b))
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(b)
	}

	if _, err := c.db.ExecContext(ctx, `
INSERT OR REPLACE INTO documents(key, url, content_type, bytes, fetched_at)
VALUES(?,?,?,?,?);`,
		key, rawURL, ct, b, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		// cache write failure is not a fetch failure
		log.Printf("[doccache] store url=%s err=%v", rawURL, err)
	}

	return b, nil
}

// Put stores bytes captured outside HTTP (a browser popup download).
func (c *DocCache) Put(ctx context.Context, rawURL string, b []byte) error {
	if len(b) == 0 {
		return errors.New("doccache: empty document")
	}
	_, err := c.db.ExecContext(ctx, `
INSERT OR REPLACE INTO documents(key, url, content_type, bytes, fetched_at)
VALUES(?,?,?,?,?);`,
		util.HashString(rawURL), rawURL, http.DetectContentType(b), b,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}
