package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id uuid.UUID) (*User, error)
	GetByShareCode(ctx context.Context, code string) (*User, error)
	UpdateShareCode(ctx context.Context, id uuid.UUID, code string) error
}

type RecordRepository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	Get(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	// ListByPatient returns the patient's records oldest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*MedicalRecord, error)
	UpdateSummary(ctx context.Context, id uuid.UUID, summary string) error
	// Delete removes a record owned by patientID. Escrowed copies of its key
	// go with it.
	Delete(ctx context.Context, patientID, id uuid.UUID) error
}

type AccessRequestRepository interface {
	// Create returns ErrConflict while another pending or granted request
	// exists for the same doctor and patient.
	Create(ctx context.Context, r *AccessRequest) error
	Get(ctx context.Context, id uuid.UUID) (*AccessRequest, error)
	// Latest returns the most recent request between doctor and patient.
	Latest(ctx context.Context, doctorID, patientID uuid.UUID) (*AccessRequest, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*AccessRequest, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*AccessRequest, error)

	// Resolve moves a pending request to granted or denied. ErrStaleState if
	// the request was not pending.
	Resolve(ctx context.Context, id uuid.UUID, to Status, at time.Time) error
	// Revoke moves a granted request to revoked. ErrStaleState if the request
	// was not granted.
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkSeen(ctx context.Context, id, doctorID uuid.UUID) error
}

type KeyRepository interface {
	InsertBundle(ctx context.Context, keys []EscrowedKey) error
	// InsertIfGranted appends k to the bundle only while its request is still
	// granted. k.Position is ignored and existing rows are left untouched.
	InsertIfGranted(ctx context.Context, k EscrowedKey) error
	Get(ctx context.Context, requestID, recordID uuid.UUID) (*EscrowedKey, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]EscrowedKey, error)
	DeleteByRequest(ctx context.Context, requestID uuid.UUID) (int64, error)
}
