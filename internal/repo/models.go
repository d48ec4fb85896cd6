package repo

import (
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medvault_backend/pkg/crypto"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

type Category string

const (
	CategoryPrescription Category = "prescription"
	CategoryLabResult    Category = "lab-result"
	CategoryScan         Category = "scan"
	CategoryReport       Category = "report"
	CategoryOther        Category = "other"
)

var Categories = []Category{
	CategoryPrescription,
	CategoryLabResult,
	CategoryScan,
	CategoryReport,
	CategoryOther,
}

func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusPending Status = "pending"
	StatusGranted Status = "granted"
	StatusDenied  Status = "denied"
	StatusRevoked Status = "revoked"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Role      Role      `json:"role"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	Specialty *string   `json:"specialty,omitempty"`
	ShareCode *string   `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// MedicalRecord is one encrypted file. FileType is the stored (opaque) type;
// the real type lives in OriginalType.
type MedicalRecord struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	FileName  string    `json:"file_name"`
	FileType  string    `json:"file_type"`
	FileKey   string    `json:"-"`
	FileSize  int64     `json:"file_size"`
	Category  Category  `json:"category"`

	IV           crypto.IV `json:"iv,omitempty"`
	OriginalName *string   `json:"original_name,omitempty"`
	OriginalType *string   `json:"original_type,omitempty"`

	// EncryptionKey is the record key wrapped under the master key. Never
	// serialized.
	EncryptionKey *string `json:"-"`

	AISummary *string   `json:"ai_summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasMetadata reports whether the record carries everything needed to be
// opened besides the key.
func (r *MedicalRecord) HasMetadata() bool {
	return len(r.IV) > 0 && r.OriginalName != nil && r.OriginalType != nil
}

func (r *MedicalRecord) HasKey() bool {
	return r.EncryptionKey != nil && *r.EncryptionKey != ""
}

type AccessRequest struct {
	ID              uuid.UUID  `json:"id"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	DoctorName      string     `json:"doctor_name"`
	DoctorSpecialty *string    `json:"doctor_specialty,omitempty"`
	PatientName     string     `json:"patient_name"`
	PatientEmail    string     `json:"patient_email"`
	Status          Status     `json:"status"`
	SeenByDoctor    bool       `json:"seen_by_doctor"`
	RequestedAt     time.Time  `json:"requested_at"`
	RespondedAt     *time.Time `json:"responded_at,omitempty"`
	RevokedAt       *time.Time `json:"revoked_at,omitempty"`
}

// EscrowedKey is one row of a grant bundle, key still wrapped.
type EscrowedKey struct {
	AccessRequestID  uuid.UUID
	RecordID         uuid.UUID
	Position         int
	WrappedKey       string
	IV               crypto.IV
	OriginalFileName string
	OriginalFileType string
}
