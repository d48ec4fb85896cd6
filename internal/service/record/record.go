// Package record stores encrypted medical records. The server only ever sees
// ciphertext: blobs go to object storage, metadata and the wrapped record key
// go to PostgreSQL.
package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medvault_backend/internal/events"
	"github.com/Alijeyrad/medvault_backend/internal/repo"
	"github.com/Alijeyrad/medvault_backend/pkg/constants"
	"github.com/Alijeyrad/medvault_backend/pkg/crypto"
	"github.com/Alijeyrad/medvault_backend/pkg/envelope"
	"github.com/Alijeyrad/medvault_backend/pkg/reqctx"
)

// ---------------------------------------------------------------------------
// Dependencies
// ---------------------------------------------------------------------------

// BlobStore is satisfied by *s3.Client.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	PresignDownload(ctx context.Context, key string) (string, error)
}

// GrantChecker is satisfied by the escrow service.
type GrantChecker interface {
	CheckGrant(ctx context.Context, doctorID, patientID uuid.UUID) (*repo.AccessRequest, error)
}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// Actor is the authenticated caller.
type Actor struct {
	ID   uuid.UUID
	Role repo.Role
}

type UploadRequest struct {
	FileName string
	Body     io.Reader
	Size     int64
	Category repo.Category

	// Encryption metadata: all three or none.
	IV           crypto.IV
	OriginalName string
	OriginalType string

	// EncryptionKey is the optional hex record key. It is stored wrapped
	// under the master key so it can be escrowed on grant.
	EncryptionKey string
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	Upload(ctx context.Context, patientID uuid.UUID, req UploadRequest) (*repo.MedicalRecord, error)
	List(ctx context.Context, patientID uuid.UUID) ([]*repo.MedicalRecord, error)

	// ListShared lists a patient's records for a doctor holding a current
	// grant.
	ListShared(ctx context.Context, doctorID, patientID uuid.UUID) ([]*repo.MedicalRecord, error)

	Get(ctx context.Context, actor Actor, recordID uuid.UUID) (*repo.MedicalRecord, error)
	DownloadURL(ctx context.Context, actor Actor, recordID uuid.UUID) (string, error)
	AnnotateSummary(ctx context.Context, patientID, recordID uuid.UUID, summary string) (*repo.MedicalRecord, error)
	Delete(ctx context.Context, patientID, recordID uuid.UUID) error
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type recordService struct {
	db        *sql.DB
	repos     repo.Manager
	blobs     BlobStore
	grants    GrantChecker
	events    events.Publisher
	logger    *slog.Logger
	master    []byte
	maxUpload int64
}

// New builds the record service. maxUpload is in bytes; zero disables the
// limit.
func New(db *sql.DB, repos repo.Manager, blobs BlobStore, grants GrantChecker, pub events.Publisher, logger *slog.Logger, master []byte, maxUpload int64) Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &recordService{
		db:        db,
		repos:     repos,
		blobs:     blobs,
		grants:    grants,
		events:    pub,
		logger:    logger,
		master:    master,
		maxUpload: maxUpload,
	}
}

// BlobKey is the object key of a record's ciphertext.
func BlobKey(patientID, blobID uuid.UUID) string {
	return fmt.Sprintf("records/%s/%s", patientID, blobID)
}

func (s *recordService) Upload(ctx context.Context, patientID uuid.UUID, req UploadRequest) (*repo.MedicalRecord, error) {
	if !req.Category.Valid() {
		return nil, ErrInvalidCategory
	}
	if req.Size <= 0 {
		return nil, ErrEmptyFile
	}
	if s.maxUpload > 0 && req.Size > s.maxUpload {
		return nil, ErrTooLarge
	}

	rec := &repo.MedicalRecord{
		ID:        uuid.New(),
		PatientID: patientID,
		FileName:  req.FileName,
		FileType:  envelope.OpaqueType,
		FileSize:  req.Size,
		Category:  req.Category,
	}
	if rec.FileName == "" {
		rec.FileName = req.OriginalName
	}

	if err := s.applyMetadata(rec, req); err != nil {
		return nil, err
	}

	rec.FileKey = BlobKey(patientID, uuid.New())
	if err := s.blobs.Upload(ctx, rec.FileKey, envelope.OpaqueType, req.Body, req.Size); err != nil {
		return nil, fmt.Errorf("store ciphertext: %w", err)
	}

	if err := s.repos.Records(s.db).Create(ctx, rec); err != nil {
		// The blob is orphaned; the deleted-record worker removes it.
		s.publishDeleted(ctx, rec)
		return nil, fmt.Errorf("create record: %w", err)
	}
	return rec, nil
}

func (s *recordService) applyMetadata(rec *repo.MedicalRecord, req UploadRequest) error {
	hasIV := len(req.IV) > 0
	if !hasIV && req.OriginalName == "" && req.OriginalType == "" {
		if req.EncryptionKey != "" {
			return ErrIncompleteMetadata
		}
		return nil
	}
	if !hasIV || req.OriginalName == "" || req.OriginalType == "" {
		return ErrIncompleteMetadata
	}
	if len(req.IV) != crypto.IVSize {
		return crypto.ErrInvalidIV
	}

	name, typ := req.OriginalName, req.OriginalType
	rec.IV = req.IV
	rec.OriginalName = &name
	rec.OriginalType = &typ

	if req.EncryptionKey == "" {
		return nil
	}
	key, err := crypto.KeyFromHex(req.EncryptionKey)
	if err != nil {
		return err
	}
	wrapped, err := crypto.WrapKey(s.master, key)
	if err != nil {
		return fmt.Errorf("wrap key: %w", err)
	}
	rec.EncryptionKey = &wrapped
	return nil
}

func (s *recordService) List(ctx context.Context, patientID uuid.UUID) ([]*repo.MedicalRecord, error) {
	return s.repos.Records(s.db).ListByPatient(ctx, patientID)
}

func (s *recordService) ListShared(ctx context.Context, doctorID, patientID uuid.UUID) ([]*repo.MedicalRecord, error) {
	if _, err := s.grants.CheckGrant(ctx, doctorID, patientID); err != nil {
		return nil, err
	}
	return s.repos.Records(s.db).ListByPatient(ctx, patientID)
}

func (s *recordService) Get(ctx context.Context, actor Actor, recordID uuid.UUID) (*repo.MedicalRecord, error) {
	rec, err := s.repos.Records(s.db).Get(ctx, recordID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}

	switch actor.Role {
	case repo.RolePatient:
		if rec.PatientID != actor.ID {
			return nil, ErrNotFound
		}
	case repo.RoleDoctor:
		if _, err := s.grants.CheckGrant(ctx, actor.ID, rec.PatientID); err != nil {
			return nil, err
		}
	default:
		return nil, ErrForbidden
	}
	return rec, nil
}

func (s *recordService) DownloadURL(ctx context.Context, actor Actor, recordID uuid.UUID) (string, error) {
	rec, err := s.Get(ctx, actor, recordID)
	if err != nil {
		return "", err
	}
	url, err := s.blobs.PresignDownload(ctx, rec.FileKey)
	if err != nil {
		return "", fmt.Errorf("presign: %w", err)
	}
	return url, nil
}

func (s *recordService) AnnotateSummary(ctx context.Context, patientID, recordID uuid.UUID, summary string) (*repo.MedicalRecord, error) {
	rec, err := s.Get(ctx, Actor{ID: patientID, Role: repo.RolePatient}, recordID)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Records(s.db).UpdateSummary(ctx, recordID, summary); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update summary: %w", err)
	}
	rec.AISummary = &summary
	rec.UpdatedAt = time.Now()
	return rec, nil
}

// Delete removes the record row, which cascades to every escrowed copy of
// its key. The blob is removed asynchronously by the deleted-record worker.
func (s *recordService) Delete(ctx context.Context, patientID, recordID uuid.UUID) error {
	rec, err := s.Get(ctx, Actor{ID: patientID, Role: repo.RolePatient}, recordID)
	if err != nil {
		return err
	}
	if err := s.repos.Records(s.db).Delete(ctx, patientID, recordID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete record: %w", err)
	}
	s.publishDeleted(ctx, rec)
	return nil
}

func (s *recordService) publishDeleted(ctx context.Context, rec *repo.MedicalRecord) {
	if err := s.events.PublishData(ctx, constants.SubjectRecordDeleted, rec.ID, []byte(rec.FileKey)); err != nil {
		s.logger.With(reqctx.LogAttrs(ctx)...).Warn("record: publish delete event failed", "record_id", rec.ID, "file_key", rec.FileKey, "err", err)
	}
}
