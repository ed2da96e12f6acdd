package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/avolkov/snapsync/internal/client/models"
	"github.com/avolkov/snapsync/internal/common"
	"github.com/avolkov/snapsync/internal/dbx"
)

// SQLiteStore implements Store over a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore returns a store bound to the given database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

const fileColumns = `local_id, remote_id, storage_key, payload, content_type, size, filename,
	version, created_at, updated_at, deleted_at, should_push, fetched_at`

func scanFile(row interface{ Scan(...any) error }) (*models.FileRecord, error) {
	f := &models.FileRecord{}
	err := row.Scan(&f.LocalID, &f.RemoteID, &f.StorageKey, &f.Payload, &f.ContentType, &f.Size,
		&f.Filename, &f.Version, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt, &f.ShouldPush, &f.FetchedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *SQLiteStore) ensureSet(ctx context.Context, db dbx.DBTX, setName string) error {
	query := `INSERT INTO imagesets (name, status, sync_marker) VALUES (?, ?, 0)
		ON CONFLICT(name) DO NOTHING`
	if _, err := db.ExecContext(ctx, query, setName, models.SetStatusDraft); err != nil {
		return fmt.Errorf("failed to ensure set: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getByID(ctx context.Context, db dbx.DBTX, setName, localID string) (*models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE set_name=? AND local_id=?`
	f, err := scanFile(db.QueryRowContext(ctx, query, setName, localID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select file: %w", err)
	}
	return f, nil
}

// GetByID returns one record or common.ErrNotFound.
func (s *SQLiteStore) GetByID(ctx context.Context, setName, localID string) (*models.FileRecord, error) {
	return s.getByID(ctx, s.db, setName, localID)
}

func (s *SQLiteStore) getAll(ctx context.Context, db dbx.DBTX, setName string) ([]models.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE set_name=?
		ORDER BY updated_at DESC, local_id`
	rows, err := db.QueryContext(ctx, query, setName)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}
	defer rows.Close()

	var result []models.FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetAll lists a set's records, most-recent-first.
func (s *SQLiteStore) GetAll(ctx context.Context, setName string) ([]models.FileRecord, error) {
	return s.getAll(ctx, s.db, setName)
}

func insertFile(ctx context.Context, db dbx.DBTX, setName string, f *models.FileRecord) error {
	query := `INSERT INTO files (set_name, ` + fileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, setName,
		f.LocalID, f.RemoteID, f.StorageKey, f.Payload, f.ContentType, f.Size, f.Filename,
		f.Version, f.CreatedAt, f.UpdatedAt, f.DeletedAt, f.ShouldPush, f.FetchedAt)
	if err != nil {
		return fmt.Errorf("failed to insert file: %w", err)
	}
	return nil
}

// Create inserts a new record, creating the set implicitly.
func (s *SQLiteStore) Create(ctx context.Context, setName string, rec *models.FileRecord) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.ensureSet(ctx, tx, setName); err != nil {
			return err
		}
		if _, err := s.getByID(ctx, tx, setName, rec.LocalID); err == nil {
			return common.ErrAlreadyExists
		} else if !errors.Is(err, common.ErrNotFound) {
			return err
		}
		return insertFile(ctx, tx, setName, rec)
	})
}

// Update applies a partial update. The payload column is never written from
// the caller's record: it is only cleared when the update carries a
// tombstone, which keeps the deleted-implies-no-payload invariant inside the
// store.
func (s *SQLiteStore) Update(ctx context.Context, setName string, rec *models.FileRecord) error {
	query := `UPDATE files SET
			remote_id=?, content_type=?, size=?, filename=?,
			version=?, created_at=?, updated_at=?, deleted_at=?, should_push=?, fetched_at=?,
			payload=CASE WHEN ? != 0 THEN NULL ELSE payload END
		WHERE set_name=? AND local_id=?`
	res, err := s.db.ExecContext(ctx, query,
		rec.RemoteID, rec.ContentType, rec.Size, rec.Filename,
		rec.Version, rec.CreatedAt, rec.UpdatedAt, rec.DeletedAt, rec.ShouldPush, rec.FetchedAt,
		rec.DeletedAt, setName, rec.LocalID)
	if err != nil {
		return fmt.Errorf("failed to update file: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

// Delete physically removes the record.
func (s *SQLiteStore) Delete(ctx context.Context, setName, localID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE set_name=? AND local_id=?`, setName, localID)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

// MarkUploaded records the outcome of a successful create push. The server
// id and storage key are written unconditionally since the remote object now
// exists; the pending flag is cleared only when the version is still the one
// that was pushed, so a mid-push edit stays pending.
func (s *SQLiteStore) MarkUploaded(ctx context.Context, setName, localID, remoteID, storageKey string, version int64) error {
	query := `UPDATE files SET remote_id=?, storage_key=?,
			should_push=CASE WHEN version=? THEN 0 ELSE should_push END
		WHERE set_name=? AND local_id=?`
	res, err := s.db.ExecContext(ctx, query, remoteID, storageKey, version, setName, localID)
	if err != nil {
		return fmt.Errorf("failed to mark uploaded: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrNotFound
	}
	return nil
}

// ClearPending clears the pending flag, guarded by version so an edit that
// landed while the push was in flight keeps the record pending.
func (s *SQLiteStore) ClearPending(ctx context.Context, setName, localID string, version int64) error {
	query := `UPDATE files SET should_push=0 WHERE set_name=? AND local_id=? AND version=?`
	res, err := s.db.ExecContext(ctx, query, setName, localID, version)
	if err != nil {
		return fmt.Errorf("failed to clear pending flag: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		// zero rows means either an unknown record or a concurrent edit;
		// only the former is an error
		if _, err := s.getByID(ctx, s.db, setName, localID); err != nil {
			return err
		}
	}
	return nil
}

func upsertFile(ctx context.Context, db dbx.DBTX, setName string, f *models.FileRecord) error {
	query := `INSERT INTO files (set_name, ` + fileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(set_name, local_id) DO UPDATE SET
			remote_id = excluded.remote_id,
			storage_key = excluded.storage_key,
			payload = excluded.payload,
			content_type = excluded.content_type,
			size = excluded.size,
			filename = excluded.filename,
			version = excluded.version,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			deleted_at = excluded.deleted_at,
			should_push = excluded.should_push,
			fetched_at = excluded.fetched_at`
	_, err := db.ExecContext(ctx, query, setName,
		f.LocalID, f.RemoteID, f.StorageKey, f.Payload, f.ContentType, f.Size, f.Filename,
		f.Version, f.CreatedAt, f.UpdatedAt, f.DeletedAt, f.ShouldPush, f.FetchedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert file: %w", err)
	}
	return nil
}

// Merge folds remote records into the set inside one transaction. Each
// record is resolved against its local counterpart; only a remote win is
// written back, so replaying an identical batch is a no-op.
func (s *SQLiteStore) Merge(ctx context.Context, setName string, remote []models.FileRecord, resolve ResolveFunc) ([]models.FileRecord, error) {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.ensureSet(ctx, tx, setName); err != nil {
			return err
		}
		for i := range remote {
			r := &remote[i]
			local, err := s.getByID(ctx, tx, setName, r.LocalID)
			if err != nil && !errors.Is(err, common.ErrNotFound) {
				return err
			}
			winner := resolve(local, r)
			if winner == nil {
				continue
			}
			if local != nil && winner == local {
				continue
			}
			if err := upsertFile(ctx, tx, setName, winner); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetAll(ctx, setName)
}

// Sets lists the locally known imagesets.
func (s *SQLiteStore) Sets(ctx context.Context) ([]models.SetInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, status, sync_marker FROM imagesets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to select sets: %w", err)
	}
	defer rows.Close()

	var result []models.SetInfo
	for rows.Next() {
		var item models.SetInfo
		if err := rows.Scan(&item.Name, &item.Status, &item.SyncMarker); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SetSyncMarker persists the pull watermark for a set. The marker only moves
// forward.
func (s *SQLiteStore) SetSyncMarker(ctx context.Context, setName string, marker int64) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.ensureSet(ctx, tx, setName); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE imagesets SET sync_marker=? WHERE name=? AND sync_marker<?`,
			marker, setName, marker)
		if err != nil {
			return fmt.Errorf("failed to update sync marker: %w", err)
		}
		return nil
	})
}
