package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/helian-labs/chatvault/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/helian-labs/chatvault/internal/core/domain"
	"github.com/helian-labs/chatvault/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to all
// metadata store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating if needed) the archive database at path and
// applies pending migrations.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// WAL keeps reads open while ingestion writes.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: path,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Conversations returns a ConversationStore backed by this store.
func (s *Store) Conversations() driven.ConversationStore {
	return &conversationStore{store: s}
}

// Messages returns a MessageStore backed by this store.
func (s *Store) Messages() driven.MessageStore {
	return &messageStore{store: s}
}

// Media returns a MediaStore backed by this store.
func (s *Store) Media() driven.MediaStore {
	return &mediaStore{store: s}
}

// Cursors returns a CursorStore backed by this store.
func (s *Store) Cursors() driven.CursorStore {
	return &cursorStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Conversation Store ====================

// conversationStore implements driven.ConversationStore.
type conversationStore struct {
	store *Store
}

var _ driven.ConversationStore = (*conversationStore)(nil)

// Save stores or updates a conversation.
func (s *conversationStore) Save(ctx context.Context, c *domain.Conversation) error {
	if c.ID == 0 {
		return domain.ErrInvalidInput
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO conversations (id, title, kind, active, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			kind = excluded.kind,
			active = excluded.active
	`, c.ID, c.Title, string(c.Kind), c.Active, c.CreatedAt)

	if err != nil {
		return fmt.Errorf("saving conversation: %w", err)
	}
	return nil
}

// Get retrieves a conversation by ID.
func (s *conversationStore) Get(ctx context.Context, id int64) (*domain.Conversation, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, title, kind, active, created_at
		FROM conversations WHERE id = ?
	`, id)

	var c domain.Conversation
	var kind string
	if err := row.Scan(&c.ID, &c.Title, &kind, &c.Active, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}
	c.Kind = domain.ConversationKind(kind)

	return &c, nil
}

// ListActive returns conversations scheduled for ingestion.
func (s *conversationStore) ListActive(ctx context.Context) ([]domain.Conversation, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, title, kind, active, created_at
		FROM conversations WHERE active = 1
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying conversations: %w", err)
	}
	defer rows.Close()

	var conversations []domain.Conversation //nolint:prealloc // size unknown from query
	for rows.Next() {
		var c domain.Conversation
		var kind string
		if err := rows.Scan(&c.ID, &c.Title, &kind, &c.Active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		c.Kind = domain.ConversationKind(kind)
		conversations = append(conversations, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}

	return conversations, nil
}

// ==================== Message Store ====================

// messageStore implements driven.MessageStore.
type messageStore struct {
	store *Store
}

var _ driven.MessageStore = (*messageStore)(nil)

// SaveMessage stores a message and its media assets in one transaction.
func (s *messageStore) SaveMessage(ctx context.Context, msg *domain.Message, assets []domain.MediaAsset) error {
	if msg.ID == "" || msg.ConversationID == 0 || msg.Fingerprint == "" {
		return domain.ErrInvalidInput
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, a := range assets {
		// Deduplicated assets may already exist from an earlier message.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO media_assets
				(id, original_format, canonical_format, byte_size, digest, status, fail_reason, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, a.ID, a.OriginalFormat, a.CanonicalFormat, a.ByteSize, a.Digest,
			string(a.Status), a.FailReason, a.CreatedAt); err != nil {
			return fmt.Errorf("saving media asset: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages
			(id, conversation_id, position, author, timestamp, text, topic_id, fingerprint, superseded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ConversationID, msg.Position, msg.Author, msg.Timestamp,
		msg.Text, msg.TopicID, msg.Fingerprint, nullString(msg.SupersededBy), msg.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: messages.") {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("saving message: %w", err)
	}

	for i, ref := range msg.MediaRefs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO message_media (message_id, media_id, ord)
			VALUES (?, ?, ?)
			ON CONFLICT(message_id, media_id) DO NOTHING
		`, msg.ID, ref, i); err != nil {
			return fmt.Errorf("linking media asset: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *messageStore) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, position, author, timestamp, text, topic_id, fingerprint, superseded_by, created_at
		FROM messages WHERE id = ?
	`, id)

	msg, err := scanMessage(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadMediaRefs(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// FindByFingerprint returns the message with the given fingerprint in the
// conversation.
func (s *messageStore) FindByFingerprint(
	ctx context.Context,
	conversationID int64,
	fingerprint string,
) (*domain.Message, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, position, author, timestamp, text, topic_id, fingerprint, superseded_by, created_at
		FROM messages WHERE conversation_id = ? AND fingerprint = ?
	`, conversationID, fingerprint)

	msg, err := scanMessage(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadMediaRefs(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// FindCurrentAtPosition returns the current message version at a remote
// position.
func (s *messageStore) FindCurrentAtPosition(
	ctx context.Context,
	conversationID, position int64,
) (*domain.Message, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, position, author, timestamp, text, topic_id, fingerprint, superseded_by, created_at
		FROM messages
		WHERE conversation_id = ? AND position = ? AND superseded_by IS NULL
	`, conversationID, position)

	msg, err := scanMessage(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadMediaRefs(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Supersede links an old message version to its replacement.
func (s *messageStore) ListCurrent(
	ctx context.Context,
	conversationID, afterPosition int64,
	limit int,
) ([]domain.Message, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, conversation_id, position, author, timestamp, text, topic_id, fingerprint, superseded_by, created_at
		FROM messages
		WHERE conversation_id = ? AND position > ? AND superseded_by IS NULL
		ORDER BY position ASC
		LIMIT ?
	`, conversationID, afterPosition, limit)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var supersededBy sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Position, &msg.Author,
			&msg.Timestamp, &msg.Text, &msg.TopicID, &msg.Fingerprint,
			&supersededBy, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		msg.SupersededBy = supersededBy.String
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}

func (s *messageStore) Supersede(ctx context.Context, oldID, newID string) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE messages SET superseded_by = ? WHERE id = ?
	`, newID, oldID)
	if err != nil {
		return fmt.Errorf("superseding message: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking superseded rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// loadMediaRefs fills msg.MediaRefs in attachment order.
func (s *messageStore) loadMediaRefs(ctx context.Context, msg *domain.Message) error {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT media_id FROM message_media WHERE message_id = ? ORDER BY ord
	`, msg.ID)
	if err != nil {
		return fmt.Errorf("querying media refs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return fmt.Errorf("scanning media ref: %w", err)
		}
		msg.MediaRefs = append(msg.MediaRefs, ref)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating media refs: %w", err)
	}
	return nil
}

// ==================== Media Store ====================

// mediaStore implements driven.MediaStore.
type mediaStore struct {
	store *Store
}

var _ driven.MediaStore = (*mediaStore)(nil)

// GetAsset retrieves asset metadata by ID.
func (s *mediaStore) GetAsset(ctx context.Context, id string) (*domain.MediaAsset, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, original_format, canonical_format, byte_size, digest, status, fail_reason, created_at
		FROM media_assets WHERE id = ?
	`, id)

	return scanAsset(row)
}

// FindByDigest returns an existing asset with the same original-bytes
// digest.
func (s *mediaStore) FindByDigest(ctx context.Context, digest string) (*domain.MediaAsset, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, original_format, canonical_format, byte_size, digest, status, fail_reason, created_at
		FROM media_assets WHERE digest = ?
		ORDER BY created_at LIMIT 1
	`, digest)

	return scanAsset(row)
}

// GetBytes returns the normalized bytes and canonical format.
func (s *mediaStore) GetBytes(ctx context.Context, id string) ([]byte, string, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT data, canonical_format FROM media_assets WHERE id = ?
	`, id)

	var data []byte
	var format string
	if err := row.Scan(&data, &format); err != nil {
		if err == sql.ErrNoRows {
			return nil, "", domain.ErrNotFound
		}
		return nil, "", fmt.Errorf("scanning media bytes: %w", err)
	}
	return data, format, nil
}

// PutBytes stores the normalized bytes for an asset.
func (s *mediaStore) PutBytes(ctx context.Context, id string, data []byte) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE media_assets SET data = ? WHERE id = ?
	`, data, id)
	if err != nil {
		return fmt.Errorf("storing media bytes: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking updated rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ==================== Cursor Store ====================

// cursorStore implements driven.CursorStore.
type cursorStore struct {
	store *Store
}

var _ driven.CursorStore = (*cursorStore)(nil)

// Get returns the cursor for a conversation. A conversation never synced
// has position 0.
func (s *cursorStore) Get(ctx context.Context, conversationID int64) (*domain.SyncCursor, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT conversation_id, position, last_success_at
		FROM sync_cursors WHERE conversation_id = ?
	`, conversationID)

	var cursor domain.SyncCursor
	var lastSuccess sql.NullTime
	if err := row.Scan(&cursor.ConversationID, &cursor.Position, &lastSuccess); err != nil {
		if err == sql.ErrNoRows {
			return &domain.SyncCursor{ConversationID: conversationID}, nil
		}
		return nil, fmt.Errorf("scanning cursor: %w", err)
	}

	if lastSuccess.Valid {
		cursor.LastSuccessAt = lastSuccess.Time
	}

	return &cursor, nil
}

// Advance moves the cursor forward. The upsert's WHERE clause is the
// monotonicity gate: a stale or replayed position never overwrites a newer
// one, and two workers racing the first-ever advance both resolve through
// the same single statement instead of racing an INSERT.
func (s *cursorStore) Advance(ctx context.Context, conversationID, position int64, at time.Time) error {
	if position <= 0 {
		return &domain.OutOfOrderError{
			ConversationID: conversationID,
			Stored:         s.storedPosition(ctx, conversationID),
			Proposed:       position,
		}
	}

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_cursors (conversation_id, position, last_success_at)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			position = excluded.position,
			last_success_at = excluded.last_success_at
		WHERE excluded.position > sync_cursors.position
	`, conversationID, position, at)
	if err != nil {
		return fmt.Errorf("advancing cursor: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking advanced rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	return &domain.OutOfOrderError{
		ConversationID: conversationID,
		Stored:         s.storedPosition(ctx, conversationID),
		Proposed:       position,
	}
}

// storedPosition reads the current cursor position, zero when no row
// exists. Used only to fill OutOfOrderError details.
func (s *cursorStore) storedPosition(ctx context.Context, conversationID int64) int64 {
	var stored int64
	_ = s.store.db.QueryRowContext(ctx, `
		SELECT position FROM sync_cursors WHERE conversation_id = ?
	`, conversationID).Scan(&stored)
	return stored
}

// ==================== Helper Functions ====================

// scanMessage scans a single message row.
func scanMessage(row *sql.Row) (*domain.Message, error) {
	var msg domain.Message
	var supersededBy sql.NullString

	if err := row.Scan(&msg.ID, &msg.ConversationID, &msg.Position, &msg.Author,
		&msg.Timestamp, &msg.Text, &msg.TopicID, &msg.Fingerprint,
		&supersededBy, &msg.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning message: %w", err)
	}

	msg.SupersededBy = supersededBy.String
	return &msg, nil
}

// scanAsset scans a single media asset row.
func scanAsset(row *sql.Row) (*domain.MediaAsset, error) {
	var a domain.MediaAsset
	var status string

	if err := row.Scan(&a.ID, &a.OriginalFormat, &a.CanonicalFormat, &a.ByteSize,
		&a.Digest, &status, &a.FailReason, &a.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning media asset: %w", err)
	}

	a.Status = domain.MediaStatus(status)
	return &a, nil
}

// nullString converts an empty string to a SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
