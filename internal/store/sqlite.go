// Package store persists clients, their messages, and staff membership in
// SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"zapdesk/internal/domain"
)

// SQLiteStore implements domain.ClientStore, domain.MessageStore, and
// domain.ManagerStore on a single SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection: SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS clients (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		phone       TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_clients_phone ON clients(phone);

	CREATE TABLE IF NOT EXISTS messages (
		id          TEXT PRIMARY KEY,
		client_id   TEXT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		text        TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_client ON messages(client_id, created_at);

	CREATE TABLE IF NOT EXISTS managers (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		phone       TEXT NOT NULL UNIQUE,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetOrCreate returns the client matching name and phone, inserting a new
// record when no such pair exists yet.
func (s *SQLiteStore) GetOrCreate(ctx context.Context, name, phone string) (*domain.Client, error) {
	var c domain.Client
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, phone, created_at, updated_at FROM clients WHERE name = ? AND phone = ?`,
		name, phone,
	).Scan(&c.ID, &c.Name, &c.Phone, &c.CreatedAt, &c.UpdatedAt)
	if err == nil {
		return &c, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	now := time.Now().UTC()
	c = domain.Client{
		ID:        uuid.NewString(),
		Name:      name,
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO clients (id, name, phone, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Phone, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.logger.Info("client created", "phone", phone, "name", name)
	return &c, nil
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, phone, created_at, updated_at FROM clients ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *SQLiteStore) Append(ctx context.Context, clientID, text string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, client_id, text, created_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), clientID, text, time.Now().UTC(),
	)
	return err
}

// ListByClient returns the client's messages newest first.
func (s *SQLiteStore) ListByClient(ctx context.Context, clientID string) ([]domain.StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_id, text, created_at FROM messages
		 WHERE client_id = ? ORDER BY created_at DESC`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.StoredMessage
	for rows.Next() {
		var m domain.StoredMessage
		if err := rows.Scan(&m.ID, &m.ClientID, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *SQLiteStore) ListManagers(ctx context.Context) ([]domain.Manager, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, phone, created_at, updated_at FROM managers ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var managers []domain.Manager
	for rows.Next() {
		var m domain.Manager
		if err := rows.Scan(&m.ID, &m.Name, &m.Phone, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		managers = append(managers, m)
	}
	return managers, rows.Err()
}

// AddManager registers a staff phone. Re-adding an existing phone is a no-op.
func (s *SQLiteStore) AddManager(ctx context.Context, name, phone string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO managers (id, name, phone, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), name, phone, now, now,
	)
	return err
}
