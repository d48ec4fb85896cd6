package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type PostgresRecords struct {
	db DBTX
}

func (r *PostgresRecords) Create(ctx context.Context, rec *MedicalRecord) error {
	query := `
		INSERT INTO medical_records
			(id, patient_id, file_name, file_type, file_key, file_size, category,
			 iv, original_name, original_type, encryption_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		rec.ID, rec.PatientID, rec.FileName, rec.FileType, rec.FileKey, rec.FileSize, string(rec.Category),
		nullBytes(rec.IV), rec.OriginalName, rec.OriginalType, rec.EncryptionKey,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const recordColumns = `id, patient_id, file_name, file_type, file_key, file_size, category,
	iv, original_name, original_type, encryption_key, ai_summary, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(s rowScanner) (*MedicalRecord, error) {
	var (
		rec      MedicalRecord
		category string
		iv       []byte
	)
	if err := s.Scan(
		&rec.ID, &rec.PatientID, &rec.FileName, &rec.FileType, &rec.FileKey, &rec.FileSize, &category,
		&iv, &rec.OriginalName, &rec.OriginalType, &rec.EncryptionKey, &rec.AISummary,
		&rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.Category = Category(category)
	if len(iv) > 0 {
		rec.IV = iv
	}
	return &rec, nil
}

func (r *PostgresRecords) Get(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM medical_records WHERE id = $1`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRecords) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*MedicalRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM medical_records
		WHERE patient_id = $1
		ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*MedicalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRecords) UpdateSummary(ctx context.Context, id uuid.UUID, summary string) error {
	query := `UPDATE medical_records SET ai_summary = $2, updated_at = now() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, summary)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return affectedOne(res, ErrNotFound)
}

func (r *PostgresRecords) Delete(ctx context.Context, patientID, id uuid.UUID) error {
	query := `DELETE FROM medical_records WHERE id = $1 AND patient_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, patientID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return affectedOne(res, ErrNotFound)
}

// nullBytes keeps an absent IV as SQL NULL rather than an empty bytea.
func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
