package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
)

const defaultSessionTable = "session_store"

// PostgresStoreConfig captures configuration required to initialize a Postgres-backed store.
type PostgresStoreConfig struct {
	DSN    string
	Schema string
	Table  string
}

// PostgresStore persists sessions in a single PostgreSQL table.
type PostgresStore struct {
	db  *sql.DB
	cfg PostgresStoreConfig
}

// NewPostgresStore establishes a connection to PostgreSQL.
func NewPostgresStore(ctx context.Context, cfg PostgresStoreConfig) (*PostgresStore, error) {
	cfg, err := normalizePostgresConfig(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("session postgres: open database connection: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session postgres: ping database: %w", err)
	}
	return &PostgresStore{db: db, cfg: cfg}, nil
}

func normalizePostgresConfig(cfg PostgresStoreConfig) (PostgresStoreConfig, error) {
	cfg.DSN = strings.TrimSpace(cfg.DSN)
	cfg.Schema = strings.TrimSpace(cfg.Schema)
	cfg.Table = strings.TrimSpace(cfg.Table)
	if cfg.DSN == "" {
		return cfg, fmt.Errorf("session postgres: DSN is required")
	}
	if cfg.Table == "" {
		cfg.Table = defaultSessionTable
	}
	return cfg, nil
}

// Close releases the underlying database connection.
func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureSchema creates the session table (and schema when provided).
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("session postgres: not initialized")
	}
	if schema := s.cfg.Schema; schema != "" {
		query := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", quoteIdentifier(schema))
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("session postgres: create schema: %w", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			authenticated BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMPTZ
		)
	`, s.fullTableName())); err != nil {
		return fmt.Errorf("session postgres: create session table: %w", err)
	}
	return nil
}

// Save upserts record.
func (s *PostgresStore) Save(ctx context.Context, record *Record) error {
	if err := validateRecord("session postgres", record); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, username, authenticated, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET username = EXCLUDED.username, authenticated = EXCLUDED.authenticated, expires_at = EXCLUDED.expires_at
	`, s.fullTableName())
	if _, err := s.db.ExecContext(ctx, query, record.ID, record.Username, record.Authenticated, record.CreatedAt, nullTime(record.ExpiresAt)); err != nil {
		return fmt.Errorf("session postgres: upsert session: %w", err)
	}
	return nil
}

// Load returns the record with id. Expired rows are deleted.
func (s *PostgresStore) Load(ctx context.Context, id string) (*Record, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := fmt.Sprintf("SELECT id, username, authenticated, created_at, expires_at FROM %s WHERE id = $1", s.fullTableName())
	var (
		record    Record
		expiresAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&record.ID, &record.Username, &record.Authenticated, &record.CreatedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session postgres: load session: %w", err)
	}
	if expiresAt.Valid {
		record.ExpiresAt = expiresAt.Time
	}
	if record.Expired(time.Now()) {
		if errDelete := s.delete(ctx, id); errDelete != nil {
			log.WithError(errDelete).Warn("session postgres: failed to delete expired session")
		}
		return nil, ErrNotFound
	}
	return &record, nil
}

func (s *PostgresStore) delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.fullTableName())
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("session postgres: delete session: %w", err)
	}
	return nil
}

func (s *PostgresStore) fullTableName() string {
	return qualifiedTableName(s.cfg.Schema, s.cfg.Table)
}

func qualifiedTableName(schema, table string) string {
	if strings.TrimSpace(schema) == "" {
		return quoteIdentifier(table)
	}
	return quoteIdentifier(schema) + "." + quoteIdentifier(table)
}

func quoteIdentifier(identifier string) string {
	replaced := strings.ReplaceAll(identifier, "\"", "\"\"")
	return "\"" + replaced + "\""
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
