package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type PostgresKeys struct {
	db DBTX
}

const insertKeyQuery = `
	INSERT INTO access_request_keys
		(access_request_id, record_id, position, wrapped_key, iv, original_file_name, original_file_type)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func (r *PostgresKeys) InsertBundle(ctx context.Context, keys []EscrowedKey) error {
	for _, k := range keys {
		_, err := r.db.ExecContext(ctx, insertKeyQuery,
			k.AccessRequestID, k.RecordID, k.Position, k.WrappedKey, []byte(k.IV), k.OriginalFileName, k.OriginalFileType,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *PostgresKeys) InsertIfGranted(ctx context.Context, k EscrowedKey) error {
	query := `
		INSERT INTO access_request_keys
			(access_request_id, record_id, position, wrapped_key, iv, original_file_name, original_file_type)
		SELECT $1::uuid, $2::uuid,
			(SELECT COALESCE(MAX(position), -1) + 1 FROM access_request_keys WHERE access_request_id = $1::uuid),
			$3::text, $4::bytea, $5::text, $6::text
		WHERE EXISTS (SELECT 1 FROM access_requests WHERE id = $1::uuid AND status = 'granted')
		ON CONFLICT (access_request_id, record_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		k.AccessRequestID, k.RecordID, k.WrappedKey, []byte(k.IV), k.OriginalFileName, k.OriginalFileType,
	)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const keyColumns = `access_request_id, record_id, position, wrapped_key, iv, original_file_name, original_file_type`

func scanKey(s rowScanner) (EscrowedKey, error) {
	var (
		k  EscrowedKey
		iv []byte
	)
	err := s.Scan(&k.AccessRequestID, &k.RecordID, &k.Position, &k.WrappedKey, &iv, &k.OriginalFileName, &k.OriginalFileType)
	k.IV = iv
	return k, err
}

func (r *PostgresKeys) Get(ctx context.Context, requestID, recordID uuid.UUID) (*EscrowedKey, error) {
	query := `SELECT ` + keyColumns + ` FROM access_request_keys
		WHERE access_request_id = $1 AND record_id = $2`
	k, err := scanKey(r.db.QueryRowContext(ctx, query, requestID, recordID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &k, nil
}

func (r *PostgresKeys) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]EscrowedKey, error) {
	query := `SELECT ` + keyColumns + ` FROM access_request_keys
		WHERE access_request_id = $1
		ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to select keys: %w", err)
	}
	defer rows.Close()

	var result []EscrowedKey
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresKeys) DeleteByRequest(ctx context.Context, requestID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM access_request_keys WHERE access_request_id = $1`, requestID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
