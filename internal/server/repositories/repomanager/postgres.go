package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/contacttrace/internal/common"
	"github.com/dmitrijs2005/contacttrace/internal/dbx"
	"github.com/dmitrijs2005/contacttrace/internal/server/migrations"
	"github.com/dmitrijs2005/contacttrace/internal/server/repositories/contacts"
	"github.com/dmitrijs2005/contacttrace/internal/server/repositories/profiles"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// pgRepositories binds the Postgres repositories to one DBTX.
type pgRepositories struct {
	db dbx.DBTX
}

func (r pgRepositories) Contacts() contacts.Repository { return contacts.NewPostgresRepository(r.db) }
func (r pgRepositories) Profiles() profiles.Repository { return profiles.NewPostgresRepository(r.db) }

// PostgresStore vends PostgreSQL-backed repositories over a shared *sql.DB.
type PostgresStore struct {
	pgRepositories
	db *sql.DB
}

// sqlOpen is a seam for testing NewPostgresStore without a server.
var sqlOpen = sql.Open

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// NewPostgresStore opens dsn with the pgx driver and migrates the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, common.Unavailable("db ping", err)
	}
	s := NewPostgresStoreFromDB(db)
	if err := s.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return s, nil
}

// NewPostgresStoreFromDB wraps an already opened database.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{pgRepositories: pgRepositories{db: db}, db: db}
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the store's connection.
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, s.db, ".")
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, pgRepositories{db: tx})
	})
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
