package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // for sqlserver
	_ "github.com/go-sql-driver/mysql"   // for mysql
	_ "github.com/lib/pq"                // for postgres
)

const snapshotTable = "workflow_snapshots"

// SQLStore keeps snapshots in the workflow_snapshots table of a postgres,
// mysql or sqlserver database
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQLStore connects to the database described by config and creates the
// snapshot table when it is missing
func OpenSQLStore(ctx context.Context, config Config) (*SQLStore, error) {
	var dsn string
	switch config.Type {
	case "postgres":
		dsn = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			config.Host, config.Port, config.User, config.Password, config.Database)
	case "mysql":
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
			config.User, config.Password, config.Host, config.Port, config.Database)
	case "sqlserver":
		dsn = fmt.Sprintf("server=%s;port=%d;user id=%s;password=%s;database=%s",
			config.Host, config.Port, config.User, config.Password, config.Database)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	db, err := sql.Open(config.Type, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := NewSQLStore(db, config.Type)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database. driver picks the SQL dialect.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// Migrate creates the snapshot table if it does not exist
func (s *SQLStore) Migrate(ctx context.Context) error {
	var ddl string
	switch s.driver {
	case "mysql":
		ddl = "CREATE TABLE IF NOT EXISTS " + snapshotTable +
			" (snapshot_key VARCHAR(255) PRIMARY KEY, data LONGTEXT NOT NULL, updated_at DATETIME NOT NULL)"
	case "sqlserver":
		ddl = "IF OBJECT_ID('" + snapshotTable + "', 'U') IS NULL CREATE TABLE " + snapshotTable +
			" (snapshot_key NVARCHAR(255) PRIMARY KEY, data NVARCHAR(MAX) NOT NULL, updated_at DATETIME2 NOT NULL)"
	default:
		ddl = "CREATE TABLE IF NOT EXISTS " + snapshotTable +
			" (snapshot_key VARCHAR(255) PRIMARY KEY, data TEXT NOT NULL, updated_at TIMESTAMP NOT NULL)"
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create snapshot table: %w", err)
	}
	return nil
}

// Save replaces the snapshot stored under key in one transaction
func (s *SQLStore) Save(ctx context.Context, key string, data []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM "+snapshotTable+" WHERE snapshot_key = "+s.placeholder(1), key); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO "+snapshotTable+" (snapshot_key, data, updated_at) VALUES ("+
			s.placeholder(1)+", "+s.placeholder(2)+", "+s.placeholder(3)+")",
		key, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, key string) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM "+snapshotTable+" WHERE snapshot_key = "+s.placeholder(1), key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return []byte(data), nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM "+snapshotTable+" WHERE snapshot_key = "+s.placeholder(1), key); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) placeholder(n int) string {
	switch s.driver {
	case "postgres":
		return fmt.Sprintf("$%d", n)
	case "sqlserver":
		return fmt.Sprintf("@p%d", n)
	default:
		return "?"
	}
}
