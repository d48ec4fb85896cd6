package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PostgresAccessRequests struct {
	db DBTX
}

func (r *PostgresAccessRequests) Create(ctx context.Context, ar *AccessRequest) error {
	query := `
		INSERT INTO access_requests
			(id, doctor_id, patient_id, doctor_name, doctor_specialty, patient_name, patient_email,
			 status, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		ar.ID, ar.DoctorID, ar.PatientID, ar.DoctorName, ar.DoctorSpecialty, ar.PatientName, ar.PatientEmail,
		string(ar.Status), ar.RequestedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const accessRequestColumns = `id, doctor_id, patient_id, doctor_name, doctor_specialty, patient_name,
	patient_email, status, seen_by_doctor, requested_at, responded_at, revoked_at`

func scanAccessRequest(s rowScanner) (*AccessRequest, error) {
	var (
		ar     AccessRequest
		status string
	)
	if err := s.Scan(
		&ar.ID, &ar.DoctorID, &ar.PatientID, &ar.DoctorName, &ar.DoctorSpecialty, &ar.PatientName,
		&ar.PatientEmail, &status, &ar.SeenByDoctor, &ar.RequestedAt, &ar.RespondedAt, &ar.RevokedAt,
	); err != nil {
		return nil, err
	}
	ar.Status = Status(status)
	return &ar, nil
}

func (r *PostgresAccessRequests) getOne(ctx context.Context, query string, args ...any) (*AccessRequest, error) {
	ar, err := scanAccessRequest(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ar, nil
}

func (r *PostgresAccessRequests) Get(ctx context.Context, id uuid.UUID) (*AccessRequest, error) {
	return r.getOne(ctx, `SELECT `+accessRequestColumns+` FROM access_requests WHERE id = $1`, id)
}

func (r *PostgresAccessRequests) Latest(ctx context.Context, doctorID, patientID uuid.UUID) (*AccessRequest, error) {
	query := `SELECT ` + accessRequestColumns + ` FROM access_requests
		WHERE doctor_id = $1 AND patient_id = $2
		ORDER BY requested_at DESC
		LIMIT 1`
	return r.getOne(ctx, query, doctorID, patientID)
}

func (r *PostgresAccessRequests) list(ctx context.Context, query string, id uuid.UUID) ([]*AccessRequest, error) {
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to select access requests: %w", err)
	}
	defer rows.Close()

	var result []*AccessRequest
	for rows.Next() {
		ar, err := scanAccessRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, ar)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresAccessRequests) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*AccessRequest, error) {
	return r.list(ctx, `SELECT `+accessRequestColumns+` FROM access_requests
		WHERE patient_id = $1 ORDER BY requested_at DESC`, patientID)
}

func (r *PostgresAccessRequests) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*AccessRequest, error) {
	return r.list(ctx, `SELECT `+accessRequestColumns+` FROM access_requests
		WHERE doctor_id = $1 ORDER BY requested_at DESC`, doctorID)
}

func (r *PostgresAccessRequests) Resolve(ctx context.Context, id uuid.UUID, to Status, at time.Time) error {
	if to != StatusGranted && to != StatusDenied {
		return fmt.Errorf("resolve to %q: %w", to, ErrStaleState)
	}
	query := `
		UPDATE access_requests SET status = $2, responded_at = $3
		WHERE id = $1 AND status = 'pending'
	`
	res, err := r.db.ExecContext(ctx, query, id, string(to), at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return affectedOne(res, ErrStaleState)
}

func (r *PostgresAccessRequests) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE access_requests SET status = 'revoked', revoked_at = $2
		WHERE id = $1 AND status = 'granted'
	`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return affectedOne(res, ErrStaleState)
}

func (r *PostgresAccessRequests) MarkSeen(ctx context.Context, id, doctorID uuid.UUID) error {
	query := `UPDATE access_requests SET seen_by_doctor = TRUE WHERE id = $1 AND doctor_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, doctorID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return affectedOne(res, ErrNotFound)
}
