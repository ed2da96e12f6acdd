package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avolkov/snapsync/internal/common"
	"github.com/avolkov/snapsync/internal/dbx"
	"github.com/avolkov/snapsync/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSet creates the imageset row on first reference.
func (r *PostgresRepository) EnsureSet(ctx context.Context, owner, name string) error {
	query := `INSERT INTO imagesets (owner, name, status) VALUES ($1, $2, 'draft')
		ON CONFLICT (owner, name) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, owner, name); err != nil {
		return fmt.Errorf("failed to ensure set: %w", err)
	}
	return nil
}

// Register upserts a file by (owner, set_name, local_id). The conditional
// update keeps last-write-wins: a retry after a partial failure reuses the
// row, a stale retry changes nothing. Either way the existing id is
// returned.
func (r *PostgresRepository) Register(ctx context.Context, f *models.File) (string, error) {
	query := `
		INSERT INTO files (owner, set_name, local_id, storage_key, content_type, size, filename,
			version, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (owner, set_name, local_id)
		DO UPDATE SET
			storage_key = EXCLUDED.storage_key,
			content_type = EXCLUDED.content_type,
			size = EXCLUDED.size,
			filename = EXCLUDED.filename,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
			WHERE files.updated_at <= EXCLUDED.updated_at
		RETURNING id;
	`
	var id string
	err := r.db.QueryRowContext(ctx, query,
		f.Owner, f.SetName, f.LocalID, f.StorageKey, f.ContentType, f.Size, f.Filename,
		f.Version, f.CreatedAt, f.UpdatedAt, f.DeletedAt).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		// stale registration: the row survived untouched, fetch its id
		lookup := `SELECT id FROM files WHERE owner=$1 AND set_name=$2 AND local_id=$3`
		if err := r.db.QueryRowContext(ctx, lookup, f.Owner, f.SetName, f.LocalID).Scan(&id); err != nil {
			return "", fmt.Errorf("failed to look up file: %w", err)
		}
		return id, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to register file: %w", err)
	}
	return id, nil
}

const fileColumns = `id, owner, set_name, local_id, storage_key, content_type, size, filename,
	version, created_at, updated_at, deleted_at`

func scanFile(row interface{ Scan(...any) error }) (*models.File, error) {
	f := &models.File{}
	err := row.Scan(&f.ID, &f.Owner, &f.SetName, &f.LocalID, &f.StorageKey, &f.ContentType,
		&f.Size, &f.Filename, &f.Version, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Get returns one file by server id.
func (r *PostgresRepository) Get(ctx context.Context, owner, set, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE owner=$1 AND set_name=$2 AND id=$3`
	f, err := scanFile(r.db.QueryRowContext(ctx, query, owner, set, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

// UpdateMeta overwrites metadata unless the stored row is newer, in which
// case the write is rejected with common.ErrVersionConflict and the stored
// row stays untouched.
func (r *PostgresRepository) UpdateMeta(ctx context.Context, f *models.File) error {
	query := `
		UPDATE files SET
			content_type=$4, size=$5, filename=$6, version=$7, updated_at=$8, deleted_at=$9
		WHERE owner=$1 AND set_name=$2 AND id=$3 AND updated_at <= $8
	`
	res, err := r.db.ExecContext(ctx, query,
		f.Owner, f.SetName, f.ID, f.ContentType, f.Size, f.Filename, f.Version, f.UpdatedAt, f.DeletedAt)
	if err != nil {
		return fmt.Errorf("failed to update file: %w", err)
	}
	// zero rows means either an unknown id or a stale write; distinguish
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		if _, err := r.Get(ctx, f.Owner, f.SetName, f.ID); err != nil {
			return err
		}
		return common.ErrVersionConflict
	}
	return nil
}

// SoftDelete tombstones a file unless the stored row is newer, in which case
// the tombstone is rejected with common.ErrVersionConflict.
func (r *PostgresRepository) SoftDelete(ctx context.Context, owner, set, id string, version, updatedAt, deletedAt int64) error {
	query := `
		UPDATE files SET version=$4, updated_at=$5, deleted_at=$6
		WHERE owner=$1 AND set_name=$2 AND id=$3 AND updated_at <= $5
	`
	res, err := r.db.ExecContext(ctx, query, owner, set, id, version, updatedAt, deletedAt)
	if err != nil {
		return fmt.Errorf("failed to soft-delete file: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		if _, err := r.Get(ctx, owner, set, id); err != nil {
			return err
		}
		return common.ErrVersionConflict
	}
	return nil
}

// SelectUpdated returns files with updated_at at or after since.
func (r *PostgresRepository) SelectUpdated(ctx context.Context, owner, set string, since int64, includeDeleted bool) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE owner=$1 AND set_name=$2 AND updated_at >= $3 AND ($4 OR deleted_at = 0)
		ORDER BY updated_at DESC, local_id`
	rows, err := r.db.QueryContext(ctx, query, owner, set, since, includeDeleted)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Representatives returns the newest undeleted file per set of the owner.
func (r *PostgresRepository) Representatives(ctx context.Context, owner string) ([]*models.SetOverview, error) {
	query := `
		SELECT DISTINCT ON (f.set_name)
			s.status, f.id, f.owner, f.set_name, f.local_id, f.storage_key, f.content_type,
			f.size, f.filename, f.version, f.created_at, f.updated_at, f.deleted_at
		FROM files f
		JOIN imagesets s ON s.owner = f.owner AND s.name = f.set_name
		WHERE f.owner=$1 AND f.deleted_at = 0
		ORDER BY f.set_name, f.updated_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to select representatives: %w", err)
	}
	defer rows.Close()

	var result []*models.SetOverview
	for rows.Next() {
		f := &models.File{}
		var status string
		err := rows.Scan(&status, &f.ID, &f.Owner, &f.SetName, &f.LocalID, &f.StorageKey,
			&f.ContentType, &f.Size, &f.Filename, &f.Version, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt)
		if err != nil {
			return nil, err
		}
		result = append(result, &models.SetOverview{Owner: owner, Name: f.SetName, Status: status, File: f})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// PurgeTombstones removes tombstones deleted before the cutoff.
func (r *PostgresRepository) PurgeTombstones(ctx context.Context, cutoff int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM files WHERE deleted_at > 0 AND deleted_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge tombstones: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
