// Package discoverycache memoizes parsed discovery results per source
// file so repeat runs over an unchanged tree skip re-tokenizing and
// re-parsing every file (spec.md §4.1, SPEC_FULL.md §4). A cache entry is
// keyed on the file's path, mtime, size, and content hash; any mismatch
// is treated as a miss, never a stale hit.
package discoverycache

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/zeebo/blake3"
)

// schemaVersion is bumped whenever the cached payload's shape changes;
// mismatched rows are dropped wholesale rather than individually
// invalidated, so old and new payload formats never collide.
const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_meta (version INTEGER NOT NULL);
CREATE TABLE IF NOT EXISTS entries (
	path    TEXT PRIMARY KEY,
	mtime   INTEGER NOT NULL,
	size    INTEGER NOT NULL,
	hash    BLOB NOT NULL,
	payload BLOB NOT NULL
);
`

// Cache wraps a sqlite3-backed key/value store for discovery payloads.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if necessary) a discovery cache at path. An empty
// path opens an in-memory cache, useful for tests.
func Open(path string) (*Cache, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open discovery cache: %w", err)
	}

	c := &Cache{db: db}

	if err := c.migrate(); err != nil {
		db.Close()

		return nil, err
	}

	return c, nil
}

func (c *Cache) migrate() error {
	if _, err := c.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate discovery cache: %w", err)
	}

	var version int

	row := c.db.QueryRow(`SELECT version FROM schema_meta LIMIT 1`)
	if err := row.Scan(&version); err == sql.ErrNoRows {
		_, err := c.db.Exec(`INSERT INTO schema_meta (version) VALUES (?)`, schemaVersion)

		return err
	} else if err != nil {
		return fmt.Errorf("read discovery cache schema version: %w", err)
	}

	if version != schemaVersion {
		if _, err := c.db.Exec(`DELETE FROM entries`); err != nil {
			return fmt.Errorf("invalidate stale discovery cache: %w", err)
		}

		if _, err := c.db.Exec(`UPDATE schema_meta SET version = ?`, schemaVersion); err != nil {
			return err
		}
	}

	return nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error { return c.db.Close() }

// Lookup reports whether path's cached payload is still valid for the
// given mtime/size/content, returning the cached payload bytes on a hit.
func (c *Cache) Lookup(path string, mtime time.Time, size int64, content []byte) (payload []byte, hit bool, err error) {
	row := c.db.QueryRow(`SELECT mtime, size, hash, payload FROM entries WHERE path = ?`, path)

	var storedMtime, storedSize int64
	var storedHash, storedPayload []byte

	if err := row.Scan(&storedMtime, &storedSize, &storedHash, &storedPayload); err == sql.ErrNoRows {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("lookup discovery cache entry %q: %w", path, err)
	}

	if storedMtime != mtime.UnixNano() || storedSize != size {
		return nil, false, nil
	}

	sum := blake3.Sum256(content)
	if string(sum[:]) != string(storedHash) {
		return nil, false, nil
	}

	return storedPayload, true, nil
}

// Store records path's current mtime/size/content hash alongside payload,
// replacing any prior entry.
func (c *Cache) Store(path string, mtime time.Time, size int64, content, payload []byte) error {
	sum := blake3.Sum256(content)

	_, err := c.db.Exec(
		`INSERT INTO entries (path, mtime, size, hash, payload) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET mtime = excluded.mtime, size = excluded.size, hash = excluded.hash, payload = excluded.payload`,
		path, mtime.UnixNano(), size, sum[:], payload,
	)
	if err != nil {
		return fmt.Errorf("store discovery cache entry %q: %w", path, err)
	}

	return nil
}
