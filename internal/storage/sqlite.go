package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/chatgraph/internal/models"
)

// SQLiteStore implements Store using SQLite. Records are kept as JSON with
// the indexed fields duplicated into columns.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps transactions and plain statements serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		first_seen INTEGER NOT NULL,
		last_seen INTEGER NOT NULL,
		data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(type);
	CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);
	CREATE INDEX IF NOT EXISTS idx_entities_first_seen ON entities(first_seen);
	CREATE INDEX IF NOT EXISTS idx_entities_last_seen ON entities(last_seen);

	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		timestamp INTEGER NOT NULL,
		date TEXT NOT NULL,
		data TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_timestamp ON conversations(timestamp);
	CREATE INDEX IF NOT EXISTS idx_conversations_date ON conversations(date);

	CREATE TABLE IF NOT EXISTS timeline (
		date TEXT PRIMARY KEY,
		data TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS search_index (
		token TEXT PRIMARY KEY,
		ids TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		data TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// withTx runs fn in a transaction, committing when fn returns nil.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// queryJSON decodes the single JSON column of every row returned by query.
func queryJSON[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]*T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

// getJSON decodes the single JSON column of one row, returning ErrNotFound when absent.
func getJSON[T any](ctx context.Context, db *sql.DB, what, query string, args ...any) (*T, error) {
	var data string
	err := db.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %v: %w", what, args, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", what, err)
	}
	return &v, nil
}

func putEntity(ctx context.Context, ex execer, e *models.Entity) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	_, err = ex.ExecContext(ctx,
		`INSERT OR REPLACE INTO entities (id, type, name, first_seen, last_seen, data)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.Name, e.FirstSeen.Unix(), e.LastSeen.Unix(), string(data),
	)
	return err
}

func putConversation(ctx context.Context, ex execer, c *models.Conversation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}
	_, err = ex.ExecContext(ctx,
		`INSERT OR REPLACE INTO conversations (id, timestamp, date, data) VALUES (?, ?, ?, ?)`,
		c.ID, c.Timestamp.Unix(), c.Date, string(data),
	)
	return err
}

func putTimelineEntry(ctx context.Context, ex execer, t *models.TimelineEntry) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal timeline entry: %w", err)
	}
	_, err = ex.ExecContext(ctx,
		`INSERT OR REPLACE INTO timeline (date, data) VALUES (?, ?)`, t.Date, string(data))
	return err
}

func putToken(ctx context.Context, ex execer, token string, ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to marshal token ids: %w", err)
	}
	_, err = ex.ExecContext(ctx,
		`INSERT OR REPLACE INTO search_index (token, ids) VALUES (?, ?)`, token, string(data))
	return err
}

func putMetadata(ctx context.Context, ex execer, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata %s: %w", key, err)
	}
	_, err = ex.ExecContext(ctx,
		`INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`, key, string(data))
	return err
}

// PutEntity inserts or replaces an entity.
func (s *SQLiteStore) PutEntity(ctx context.Context, e *models.Entity) error {
	return putEntity(ctx, s.db, e)
}

// GetEntity returns an entity by ID.
func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	return getJSON[models.Entity](ctx, s.db, "entity", `SELECT data FROM entities WHERE id = ?`, id)
}

// GetAllEntities returns every entity ordered by first_seen.
func (s *SQLiteStore) GetAllEntities(ctx context.Context) ([]*models.Entity, error) {
	return queryJSON[models.Entity](ctx, s.db, `SELECT data FROM entities ORDER BY first_seen, rowid`)
}

// EntitiesByType returns the entities of typ.
func (s *SQLiteStore) EntitiesByType(ctx context.Context, typ models.EntityType) ([]*models.Entity, error) {
	return queryJSON[models.Entity](ctx, s.db,
		`SELECT data FROM entities WHERE type = ? ORDER BY first_seen, rowid`, string(typ))
}

// EntitiesByName returns the entities whose display name equals name.
func (s *SQLiteStore) EntitiesByName(ctx context.Context, name string) ([]*models.Entity, error) {
	return queryJSON[models.Entity](ctx, s.db,
		`SELECT data FROM entities WHERE name = ? ORDER BY first_seen, rowid`, name)
}

// EntitiesSeenBetween returns entities whose last_seen lies in [from, to].
func (s *SQLiteStore) EntitiesSeenBetween(ctx context.Context, from, to time.Time) ([]*models.Entity, error) {
	return queryJSON[models.Entity](ctx, s.db,
		`SELECT data FROM entities WHERE last_seen BETWEEN ? AND ? ORDER BY last_seen`,
		from.Unix(), to.Unix())
}

// RecentEntities returns up to limit entities ordered by last_seen descending.
func (s *SQLiteStore) RecentEntities(ctx context.Context, limit int) ([]*models.Entity, error) {
	return queryJSON[models.Entity](ctx, s.db,
		`SELECT data FROM entities ORDER BY last_seen DESC, rowid LIMIT ?`, limit)
}

// ClearEntities removes every entity.
func (s *SQLiteStore) ClearEntities(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM entities`)
	return err
}

// PutConversation inserts or replaces a conversation summary.
func (s *SQLiteStore) PutConversation(ctx context.Context, c *models.Conversation) error {
	return putConversation(ctx, s.db, c)
}

// GetConversation returns a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	return getJSON[models.Conversation](ctx, s.db, "conversation", `SELECT data FROM conversations WHERE id = ?`, id)
}

// GetAllConversations returns every conversation ordered by timestamp.
func (s *SQLiteStore) GetAllConversations(ctx context.Context) ([]*models.Conversation, error) {
	return queryJSON[models.Conversation](ctx, s.db, `SELECT data FROM conversations ORDER BY timestamp, rowid`)
}

// ConversationsByDate returns the conversations of one calendar date.
func (s *SQLiteStore) ConversationsByDate(ctx context.Context, date string) ([]*models.Conversation, error) {
	return queryJSON[models.Conversation](ctx, s.db,
		`SELECT data FROM conversations WHERE date = ? ORDER BY timestamp`, date)
}

// ConversationsBetween returns conversations with from <= timestamp <= to.
func (s *SQLiteStore) ConversationsBetween(ctx context.Context, from, to time.Time) ([]*models.Conversation, error) {
	return queryJSON[models.Conversation](ctx, s.db,
		`SELECT data FROM conversations WHERE timestamp BETWEEN ? AND ? ORDER BY timestamp`,
		from.Unix(), to.Unix())
}

// ConversationIDs returns the set of stored conversation ids.
func (s *SQLiteStore) ConversationIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM conversations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// ClearConversations removes every conversation.
func (s *SQLiteStore) ClearConversations(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations`)
	return err
}

// PutTimelineEntry inserts or replaces the entry for its date.
func (s *SQLiteStore) PutTimelineEntry(ctx context.Context, t *models.TimelineEntry) error {
	return putTimelineEntry(ctx, s.db, t)
}

// GetTimelineEntry returns the entry for date.
func (s *SQLiteStore) GetTimelineEntry(ctx context.Context, date string) (*models.TimelineEntry, error) {
	return getJSON[models.TimelineEntry](ctx, s.db, "timeline entry", `SELECT data FROM timeline WHERE date = ?`, date)
}

// GetTimeline returns every entry ordered by date.
func (s *SQLiteStore) GetTimeline(ctx context.Context) ([]*models.TimelineEntry, error) {
	return queryJSON[models.TimelineEntry](ctx, s.db, `SELECT data FROM timeline ORDER BY date`)
}

// TimelineBetween returns entries with fromDate <= date <= toDate.
func (s *SQLiteStore) TimelineBetween(ctx context.Context, fromDate, toDate string) ([]*models.TimelineEntry, error) {
	return queryJSON[models.TimelineEntry](ctx, s.db,
		`SELECT data FROM timeline WHERE date BETWEEN ? AND ? ORDER BY date`, fromDate, toDate)
}

// ClearTimeline removes every timeline entry.
func (s *SQLiteStore) ClearTimeline(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM timeline`)
	return err
}

// PutToken replaces the entity ids stored for token.
func (s *SQLiteStore) PutToken(ctx context.Context, token string, ids []string) error {
	return putToken(ctx, s.db, token, ids)
}

// LookupToken returns the entity ids for token; nil when the token is unknown.
func (s *SQLiteStore) LookupToken(ctx context.Context, token string) ([]string, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT ids FROM search_index WHERE token = ?`, token).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token ids: %w", err)
	}
	return ids, nil
}

// ClearSearchIndex removes every token.
func (s *SQLiteStore) ClearSearchIndex(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM search_index`)
	return err
}

// GetMetadata decodes the value stored under key into v.
func (s *SQLiteStore) GetMetadata(ctx context.Context, key string, v any) error {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("metadata %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), v)
}

// PutMetadata stores v under key.
func (s *SQLiteStore) PutMetadata(ctx context.Context, key string, v any) error {
	return putMetadata(ctx, s.db, key, v)
}

// UpdateMetadata reads, transforms and writes key in one transaction.
func (s *SQLiteStore) UpdateMetadata(ctx context.Context, key string, fn func(current json.RawMessage) (any, error)) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current json.RawMessage
		var data string
		err := tx.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&data)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return err
		default:
			current = json.RawMessage(data)
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		return putMetadata(ctx, tx, key, next)
	})
}

// Checkpoint returns the stored checkpoint, or the zero checkpoint before the first run.
func (s *SQLiteStore) Checkpoint(ctx context.Context) (models.Checkpoint, error) {
	var cp models.Checkpoint
	err := s.GetMetadata(ctx, KeyCheckpoint, &cp)
	if errors.Is(err, ErrNotFound) {
		return models.Checkpoint{}, nil
	}
	return cp, err
}

// History returns the processing log in append order.
func (s *SQLiteStore) History(ctx context.Context) ([]models.HistoryRecord, error) {
	records, err := queryJSON[models.HistoryRecord](ctx, s.db, `SELECT data FROM history ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	out := make([]models.HistoryRecord, len(records))
	for i, r := range records {
		out[i] = *r
	}
	return out, nil
}

// Commit replaces every collection with snap in a single transaction.
// Nothing is written when any statement fails.
// Settings returns the run settings written by the last commit.
func (s *SQLiteStore) Settings(ctx context.Context) (*models.Settings, error) {
	var set models.Settings
	err := s.GetMetadata(ctx, KeySettings, &set)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &set, nil
}

func (s *SQLiteStore) Commit(ctx context.Context, snap *Snapshot) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"entities", "conversations", "timeline", "search_index"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		for _, e := range snap.Entities {
			if err := putEntity(ctx, tx, e); err != nil {
				return fmt.Errorf("put entity %s: %w", e.ID, err)
			}
		}
		for _, c := range snap.Conversations {
			if err := putConversation(ctx, tx, c); err != nil {
				return fmt.Errorf("put conversation %s: %w", c.ID, err)
			}
		}
		for _, t := range snap.Timeline {
			if err := putTimelineEntry(ctx, tx, t); err != nil {
				return fmt.Errorf("put timeline %s: %w", t.Date, err)
			}
		}
		tokens := make([]string, 0, len(snap.SearchIndex))
		for token := range snap.SearchIndex {
			tokens = append(tokens, token)
		}
		sort.Strings(tokens)
		for _, token := range tokens {
			if err := putToken(ctx, tx, token, snap.SearchIndex[token]); err != nil {
				return fmt.Errorf("put token %s: %w", token, err)
			}
		}
		if snap.Checkpoint != nil {
			if err := putMetadata(ctx, tx, KeyCheckpoint, snap.Checkpoint); err != nil {
				return err
			}
		}
		if snap.Settings != nil {
			if err := putMetadata(ctx, tx, KeySettings, snap.Settings); err != nil {
				return err
			}
		}
		if snap.History != nil {
			data, err := json.Marshal(snap.History)
			if err != nil {
				return fmt.Errorf("failed to marshal history: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO history (data) VALUES (?)`, string(data)); err != nil {
				return fmt.Errorf("append history: %w", err)
			}
		}
		return nil
	})
}

// Stats returns row counts and the on-disk size of the database.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	counts := []struct {
		table string
		dst   *int64
	}{
		{"entities", &st.Entities},
		{"conversations", &st.Conversations},
		{"timeline", &st.TimelineDays},
		{"search_index", &st.Tokens},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("count %s: %w", c.table, err)
		}
	}
	size, err := DiskUsageBytes(s.path, s.path+"-wal", s.path+"-shm")
	if err != nil {
		return nil, err
	}
	st.DiskBytes = size
	return &st, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
