package profiles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/dmitrijs2005/contacttrace/internal/common"
	"github.com/dmitrijs2005/contacttrace/internal/dbx"
	"github.com/dmitrijs2005/contacttrace/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) NextID(ctx context.Context) (uint32, error) {
	var id int64
	if err := r.db.QueryRowContext(ctx, `SELECT nextval('profile_id_seq')`).Scan(&id); err != nil {
		return 0, common.Unavailable("profiles: next id", err)
	}
	if id <= 0 || id > math.MaxUint32 {
		return 0, common.Unavailable("profiles: next id", fmt.Errorf("sequence value %d out of range", id))
	}
	return uint32(id), nil
}

func (r *PostgresRepository) Add(ctx context.Context, p *models.Profile) error {
	query := `
		INSERT INTO profiles (id, partition_key, device_id, push_token, locale, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, 1)
		ON CONFLICT (id) DO NOTHING
	`
	rec := p.Record()
	res, err := r.db.ExecContext(ctx, query,
		int64(rec.ID), rec.PartitionKey, rec.DeviceID, rec.PushToken, rec.Locale, rec.CreatedAt)
	if err != nil {
		return common.Unavailable("profiles: insert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.Unavailable("profiles: rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("profiles: %d: %w", rec.ID, common.ErrorConflict)
	}
	p.SetVersion(1)
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uint32, partitionKey string) (*models.Profile, error) {
	query := `
		SELECT id, partition_key, device_id, push_token, locale, created_at, version
		FROM profiles WHERE id = $1 AND partition_key = $2
	`
	var (
		rec   models.ProfileRecord
		rowID int64
	)
	err := r.db.QueryRowContext(ctx, query, int64(id), partitionKey).Scan(
		&rowID, &rec.PartitionKey, &rec.DeviceID, &rec.PushToken, &rec.Locale, &rec.CreatedAt, &rec.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profiles: %d: %w", id, common.ErrorNotFound)
		}
		return nil, common.Unavailable("profiles: get", err)
	}
	rec.ID = uint32(rowID)
	return models.ProfileFromRecord(rec)
}

func (r *PostgresRepository) Update(ctx context.Context, p *models.Profile) error {
	query := `
		UPDATE profiles
		SET push_token = $3, locale = $4, version = version + 1
		WHERE id = $1 AND partition_key = $2 AND version = $5
		RETURNING version
	`
	rec := p.Record()
	var version int64
	err := r.db.QueryRowContext(ctx, query,
		int64(rec.ID), rec.PartitionKey, rec.PushToken, rec.Locale, rec.Version).Scan(&version)
	if err == nil {
		p.SetVersion(version)
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return common.Unavailable("profiles: update", err)
	}

	var current int64
	err = r.db.QueryRowContext(ctx,
		`SELECT version FROM profiles WHERE id = $1 AND partition_key = $2`, int64(rec.ID), rec.PartitionKey,
	).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("profiles: %d: %w", rec.ID, common.ErrorNotFound)
	case err != nil:
		return common.Unavailable("profiles: read version", err)
	default:
		return fmt.Errorf("profiles: %d at version %d, stored %d: %w", rec.ID, rec.Version, current, common.ErrorConflict)
	}
}
