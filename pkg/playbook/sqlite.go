package playbook

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
)

// SQLiteStore persists the playbook in a SQLite database. It is
// interchangeable with FileStore; hosts that already keep run state in
// SQLite can point both at the same file.
type SQLiteStore struct {
	db            *sql.DB
	path          string
	defaultBudget int
	mu            sync.Mutex

	initialized sync.Once
}

// NewSQLiteStore opens (or creates) a SQLite-backed store. If path is
// ":memory:", the database lives in memory for the process lifetime.
func NewSQLiteStore(path string, defaultBudget int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.MergeFailed, "failed to open playbook database"),
			errors.Fields{"path": path},
		)
	}

	store := &SQLiteStore{
		db:            db,
		path:          path,
		defaultBudget: defaultBudget,
	}
	if err := store.ensureInitialized(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) ensureInitialized() error {
	var initErr error
	s.initialized.Do(func() {
		// WAL mode for better concurrency with external readers
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			initErr = errors.Wrap(err, errors.MergeFailed, "failed to enable WAL mode")
			return
		}

		query := `
        CREATE TABLE IF NOT EXISTS playbook_meta (
            id INTEGER PRIMARY KEY CHECK (id = 1),
            version INTEGER NOT NULL,
            token_budget INTEGER NOT NULL,
            updated_at DATETIME NOT NULL
        );

        CREATE TABLE IF NOT EXISTS playbook_items (
            id TEXT PRIMARY KEY,
            type TEXT NOT NULL,
            name TEXT,
            payload TEXT NOT NULL,
            accepted INTEGER NOT NULL,
            created_at DATETIME NOT NULL,
            version_created INTEGER NOT NULL,
            metadata TEXT,
            seq INTEGER
        );

        CREATE INDEX IF NOT EXISTS idx_playbook_items_seq
        ON playbook_items(seq);
        `

		if _, err := s.db.Exec(query); err != nil {
			initErr = errors.Wrap(err, errors.MergeFailed, "failed to initialize playbook schema")
		}
	})
	return initErr
}

// Load reads the persisted playbook. An empty database yields an empty
// playbook at version 1 with the store's default budget.
func (s *SQLiteStore) Load() (*Playbook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := New(s.defaultBudget)

	var updatedAt time.Time
	row := s.db.QueryRow("SELECT version, token_budget, updated_at FROM playbook_meta WHERE id = 1")
	err := row.Scan(&p.Version, &p.TokenBudget, &updatedAt)
	if err == sql.ErrNoRows {
		return p, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.MergeFailed, "failed to read playbook meta")
	}
	p.UpdatedAt = updatedAt

	rows, err := s.db.Query(`
        SELECT id, type, name, payload, accepted, created_at, version_created, metadata
        FROM playbook_items ORDER BY seq ASC`)
	if err != nil {
		return nil, errors.Wrap(err, errors.MergeFailed, "failed to read playbook items")
	}
	defer rows.Close()

	for rows.Next() {
		var item Item
		var name, metadata sql.NullString
		var accepted int
		if err := rows.Scan(&item.ID, &item.Type, &name, &item.Payload, &accepted,
			&item.CreatedAt, &item.VersionCreated, &metadata); err != nil {
			return nil, errors.Wrap(err, errors.MergeFailed, "failed to scan playbook item")
		}
		item.Name = name.String
		item.Accepted = accepted != 0
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &item.Metadata); err != nil {
				return nil, errors.Wrap(err, errors.MergeFailed, "failed to decode item metadata")
			}
		}
		p.Items = append(p.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.MergeFailed, "failed to iterate playbook items")
	}

	return p, nil
}

// Save writes the playbook in one transaction and refreshes UpdatedAt.
func (s *SQLiteStore) Save(p *Playbook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.UpdatedAt = time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, errors.MergeFailed, "failed to begin playbook transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
        INSERT INTO playbook_meta (id, version, token_budget, updated_at)
        VALUES (1, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            version = excluded.version,
            token_budget = excluded.token_budget,
            updated_at = excluded.updated_at`,
		p.Version, p.TokenBudget, p.UpdatedAt); err != nil {
		return errors.Wrap(err, errors.MergeFailed, "failed to write playbook meta")
	}

	// The ledger is append-only, so existing rows never change; upsert
	// keeps the write idempotent across retries.
	for seq, item := range p.Items {
		var metadata []byte
		if len(item.Metadata) > 0 {
			metadata, err = json.Marshal(item.Metadata)
			if err != nil {
				return errors.Wrap(err, errors.MergeFailed, "failed to encode item metadata")
			}
		}

		accepted := 0
		if item.Accepted {
			accepted = 1
		}

		if _, err := tx.Exec(`
            INSERT INTO playbook_items
                (id, type, name, payload, accepted, created_at, version_created, metadata, seq)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(id) DO NOTHING`,
			item.ID, item.Type, item.Name, item.Payload, accepted,
			item.CreatedAt, item.VersionCreated, string(metadata), seq); err != nil {
			return errors.Wrap(err, errors.MergeFailed, "failed to write playbook item")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.MergeFailed, "failed to commit playbook")
	}

	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
