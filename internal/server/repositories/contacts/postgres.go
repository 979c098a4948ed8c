package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/contacttrace/internal/common"
	"github.com/dmitrijs2005/contacttrace/internal/dbx"
	"github.com/dmitrijs2005/contacttrace/internal/server/models"
)

// PostgresRepository implements contact storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, partition_key, type, profile_id, source_device_id, seen_profile_id,
		occurred_at, duration, latitude, longitude, accuracy, version`

// Add inserts the contact at version 1. An existing row with the same id is
// left untouched and reported as a conflict.
func (r *PostgresRepository) Add(ctx context.Context, c *models.Contact) error {
	query := `
		INSERT INTO contacts (id, partition_key, type, profile_id, source_device_id, seen_profile_id,
			occurred_at, duration, latitude, longitude, accuracy, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
		ON CONFLICT (id) DO NOTHING
	`
	rec := c.Record()
	res, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.PartitionKey, rec.Type, int64(rec.ProfileID), rec.SourceDeviceID, int64(rec.SeenProfileID),
		rec.Timestamp, nullInt64(rec.Duration), nullFloat64(rec.Latitude), nullFloat64(rec.Longitude), nullFloat64(rec.Accuracy))
	if err != nil {
		return common.Unavailable("contacts: insert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.Unavailable("contacts: rows affected", err)
	}
	switch n {
	case 1:
		c.SetVersion(1)
		return nil
	case 0:
		return fmt.Errorf("contacts: %s: %w", rec.ID, common.ErrorConflict)
	default:
		return common.Unavailable("contacts: insert", fmt.Errorf("unexpected rows affected: %d", n))
	}
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID, partitionKey string) (*models.Contact, error) {
	query := `SELECT ` + selectColumns + ` FROM contacts WHERE id = $1 AND partition_key = $2`

	c, err := scanContact(r.db.QueryRowContext(ctx, query, id.String(), partitionKey))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contacts: %s: %w", id, common.ErrorNotFound)
		}
		return nil, err
	}
	return c, nil
}

// Update writes the mutable attributes of c guarded by its current version.
// Identity, kind and the profile ids are never rewritten.
func (r *PostgresRepository) Update(ctx context.Context, c *models.Contact) error {
	query := `
		UPDATE contacts
		SET source_device_id = $3, occurred_at = $4, duration = $5,
			latitude = $6, longitude = $7, accuracy = $8, version = version + 1
		WHERE id = $1 AND partition_key = $2 AND version = $9
		RETURNING version
	`
	rec := c.Record()
	var version int64
	err := r.db.QueryRowContext(ctx, query,
		rec.ID, rec.PartitionKey, rec.SourceDeviceID, rec.Timestamp, nullInt64(rec.Duration),
		nullFloat64(rec.Latitude), nullFloat64(rec.Longitude), nullFloat64(rec.Accuracy), rec.Version,
	).Scan(&version)
	if err == nil {
		c.SetVersion(version)
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return common.Unavailable("contacts: update", err)
	}

	var current int64
	err = r.db.QueryRowContext(ctx,
		`SELECT version FROM contacts WHERE id = $1 AND partition_key = $2`, rec.ID, rec.PartitionKey,
	).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("contacts: %s: %w", rec.ID, common.ErrorNotFound)
	case err != nil:
		return common.Unavailable("contacts: read version", err)
	default:
		return fmt.Errorf("contacts: %s at version %d, stored %d: %w", rec.ID, rec.Version, current, common.ErrorConflict)
	}
}

func (r *PostgresRepository) ListByPartition(ctx context.Context, partitionKey string) ([]*models.Contact, error) {
	query := `SELECT ` + selectColumns + ` FROM contacts WHERE partition_key = $1 ORDER BY occurred_at, id`

	rows, err := r.db.QueryContext(ctx, query, partitionKey)
	if err != nil {
		return nil, common.Unavailable("contacts: list", err)
	}
	defer rows.Close()

	var result []*models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, common.Unavailable("contacts: list", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContact(s scanner) (*models.Contact, error) {
	var (
		rec               models.ContactRecord
		duration          sql.NullInt64
		lat, lon, acc     sql.NullFloat64
		profileID, seenID int64
	)
	err := s.Scan(&rec.ID, &rec.PartitionKey, &rec.Type, &profileID, &rec.SourceDeviceID, &seenID,
		&rec.Timestamp, &duration, &lat, &lon, &acc, &rec.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, common.Unavailable("contacts: scan", err)
	}
	rec.ProfileID = uint32(profileID)
	rec.SeenProfileID = uint32(seenID)
	if duration.Valid {
		rec.Duration = &duration.Int64
	}
	if lat.Valid {
		rec.Latitude = &lat.Float64
	}
	if lon.Valid {
		rec.Longitude = &lon.Float64
	}
	if acc.Valid {
		rec.Accuracy = &acc.Float64
	}

	c, err := models.ContactFromRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("contacts: corrupt record: %w", err)
	}
	return c, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func nullFloat64(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
