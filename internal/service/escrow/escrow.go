// Package escrow distributes record keys to doctors whose access has been
// granted.
//
// FetchKeyFor is the source of truth: it checks the most recent request
// between doctor and patient on every call. The bundle written at grant time
// is a pre-warmed cache of the same keys and is scrubbed on revoke.
//
// Revocation cannot reach keys a doctor already holds client side. Anything
// fetched before the revoke stays usable in that doctor's session cache until
// it expires or is cleared.
package escrow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Alijeyrad/medvault_backend/internal/repo"
	"github.com/Alijeyrad/medvault_backend/pkg/crypto"
	"github.com/Alijeyrad/medvault_backend/pkg/observability"
	"github.com/Alijeyrad/medvault_backend/pkg/reqctx"
)

// EncryptionKey is the wire form of one escrowed key: hex key, IV as an
// integer array.
type EncryptionKey struct {
	RecordID         uuid.UUID `json:"record_id"`
	Key              string    `json:"key"`
	IV               crypto.IV `json:"iv"`
	OriginalFileName string    `json:"original_file_name"`
	OriginalFileType string    `json:"original_file_type"`
}

type Service interface {
	// EscrowAllKeysFor packages the key of every record of patientID that
	// carries encryption metadata. Records without it are skipped with a
	// warning.
	EscrowAllKeysFor(ctx context.Context, patientID, doctorID uuid.UUID) ([]EncryptionKey, error)

	// Deposit writes the grant bundle for req inside tx.
	Deposit(ctx context.Context, tx repo.DBTX, req *repo.AccessRequest) error

	// Scrub deletes the bundle of a revoked request inside tx.
	Scrub(ctx context.Context, tx repo.DBTX, requestID uuid.UUID) error

	FetchKeyFor(ctx context.Context, doctorID, patientID, recordID uuid.UUID) (*EncryptionKey, error)

	// OwnerKey returns the stored key of a patient's own record so an upload
	// escrowed with its key can be reopened after the session cache is gone.
	// No grant is involved and nothing is written to a bundle.
	OwnerKey(ctx context.Context, patientID, recordID uuid.UUID) (*EncryptionKey, error)

	// Bundle returns the grant-time bundle while the request is granted.
	Bundle(ctx context.Context, doctorID, requestID uuid.UUID) ([]EncryptionKey, error)

	// CheckGrant returns the most recent request between doctor and patient
	// if it is granted, ErrAuthorization otherwise.
	CheckGrant(ctx context.Context, doctorID, patientID uuid.UUID) (*repo.AccessRequest, error)
}

type escrowService struct {
	db      *sql.DB
	repos   repo.Manager
	master  []byte
	logger  *slog.Logger
	metrics *observability.KeyMetrics
}

func New(db *sql.DB, repos repo.Manager, master []byte, logger *slog.Logger, metrics *observability.KeyMetrics) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &escrowService{
		db:      db,
		repos:   repos,
		master:  master,
		logger:  logger,
		metrics: metrics,
	}
}

// log tags entries with the HTTP request and caller behind ctx.
func (s *escrowService) log(ctx context.Context) *slog.Logger {
	return s.logger.With(reqctx.LogAttrs(ctx)...)
}

func (s *escrowService) EscrowAllKeysFor(ctx context.Context, patientID, doctorID uuid.UUID) ([]EncryptionKey, error) {
	return s.enumerate(ctx, s.db, patientID, doctorID)
}

func (s *escrowService) enumerate(ctx context.Context, db repo.DBTX, patientID, doctorID uuid.UUID) ([]EncryptionKey, error) {
	records, err := s.repos.Records(db).ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	keys := make([]EncryptionKey, 0, len(records))
	var unwrapErrs *multierror.Error

	for _, rec := range records {
		if !rec.HasMetadata() || !rec.HasKey() {
			s.log(ctx).Warn("escrow: skipping record without encryption metadata",
				"record_id", rec.ID, "patient_id", patientID, "doctor_id", doctorID)
			s.metrics.Skipped(ctx, "missing_metadata")
			continue
		}

		key, err := crypto.UnwrapKey(s.master, *rec.EncryptionKey)
		if err != nil {
			unwrapErrs = multierror.Append(unwrapErrs, fmt.Errorf("record %s: %w", rec.ID, err))
			s.metrics.Skipped(ctx, "unwrap_failed")
			continue
		}

		keys = append(keys, EncryptionKey{
			RecordID:         rec.ID,
			Key:              crypto.KeyToHex(key),
			IV:               rec.IV,
			OriginalFileName: *rec.OriginalName,
			OriginalFileType: *rec.OriginalType,
		})
	}

	if err := unwrapErrs.ErrorOrNil(); err != nil {
		s.log(ctx).Warn("escrow: skipped records with unreadable keys",
			"patient_id", patientID, "doctor_id", doctorID, "count", unwrapErrs.Len(), "err", err)
	}

	return keys, nil
}

func (s *escrowService) Deposit(ctx context.Context, tx repo.DBTX, req *repo.AccessRequest) error {
	keys, err := s.enumerate(ctx, tx, req.PatientID, req.DoctorID)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	rows := make([]repo.EscrowedKey, 0, len(keys))
	for i, k := range keys {
		row, err := s.wrap(req.ID, i, k)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	if err := s.repos.Keys(tx).InsertBundle(ctx, rows); err != nil {
		return fmt.Errorf("insert bundle: %w", err)
	}
	s.metrics.Escrowed(ctx, len(rows))
	return nil
}

func (s *escrowService) Scrub(ctx context.Context, tx repo.DBTX, requestID uuid.UUID) error {
	n, err := s.repos.Keys(tx).DeleteByRequest(ctx, requestID)
	if err != nil {
		return fmt.Errorf("scrub bundle: %w", err)
	}
	s.log(ctx).Info("escrow: bundle scrubbed", "access_request_id", requestID, "keys", n)
	return nil
}

func (s *escrowService) CheckGrant(ctx context.Context, doctorID, patientID uuid.UUID) (*repo.AccessRequest, error) {
	latest, err := s.repos.AccessRequests(s.db).Latest(ctx, doctorID, patientID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrAuthorization
		}
		return nil, fmt.Errorf("latest request: %w", err)
	}
	if latest.Status != repo.StatusGranted {
		return nil, ErrAuthorization
	}
	return latest, nil
}

func (s *escrowService) FetchKeyFor(ctx context.Context, doctorID, patientID, recordID uuid.UUID) (*EncryptionKey, error) {
	ctx, span := observability.Tracer().Start(ctx, "escrow.FetchKeyFor", trace.WithAttributes(
		attribute.String("record_id", recordID.String()),
	))
	defer span.End()

	grant, err := s.CheckGrant(ctx, doctorID, patientID)
	if err != nil {
		s.metrics.Fetch(ctx, "denied")
		return nil, err
	}

	if cached, err := s.repos.Keys(s.db).Get(ctx, grant.ID, recordID); err == nil {
		key, err := s.unwrap(*cached)
		if err == nil {
			s.metrics.Fetch(ctx, "bundle")
			return key, nil
		}
		s.log(ctx).Warn("escrow: bundle entry unreadable, using record", "access_request_id", grant.ID, "record_id", recordID)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("bundle lookup: %w", err)
	}

	key, err := s.recordKey(ctx, patientID, recordID)
	if err != nil {
		return nil, err
	}

	// Warm the bundle. The insert only lands while the grant still holds, so
	// a revoke racing this call cannot leave a key behind.
	if row, err := s.wrap(grant.ID, 0, *key); err == nil {
		if err := s.repos.Keys(s.db).InsertIfGranted(ctx, row); err != nil {
			s.log(ctx).Warn("escrow: bundle warm failed", "access_request_id", grant.ID, "record_id", recordID, "err", err)
		}
	}

	s.metrics.Fetch(ctx, "record")
	return key, nil
}

func (s *escrowService) OwnerKey(ctx context.Context, patientID, recordID uuid.UUID) (*EncryptionKey, error) {
	ctx, span := observability.Tracer().Start(ctx, "escrow.OwnerKey", trace.WithAttributes(
		attribute.String("record_id", recordID.String()),
	))
	defer span.End()

	key, err := s.recordKey(ctx, patientID, recordID)
	if err != nil {
		return nil, err
	}
	s.metrics.Fetch(ctx, "owner")
	return key, nil
}

// recordKey unwraps the stored key of a record owned by patientID.
func (s *escrowService) recordKey(ctx context.Context, patientID, recordID uuid.UUID) (*EncryptionKey, error) {
	rec, err := s.repos.Records(s.db).Get(ctx, recordID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	if rec.PatientID != patientID {
		return nil, ErrRecordNotFound
	}
	if !rec.HasMetadata() || !rec.HasKey() {
		s.log(ctx).Warn("escrow: requested record has no encryption metadata", "record_id", recordID)
		return nil, ErrMissingMetadata
	}

	raw, err := crypto.UnwrapKey(s.master, *rec.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("unwrap record key: %w", err)
	}
	return &EncryptionKey{
		RecordID:         rec.ID,
		Key:              crypto.KeyToHex(raw),
		IV:               rec.IV,
		OriginalFileName: *rec.OriginalName,
		OriginalFileType: *rec.OriginalType,
	}, nil
}

func (s *escrowService) Bundle(ctx context.Context, doctorID, requestID uuid.UUID) ([]EncryptionKey, error) {
	req, err := s.repos.AccessRequests(s.db).Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req.DoctorID != doctorID {
		return nil, ErrRequestNotFound
	}
	if req.Status != repo.StatusGranted {
		return nil, ErrAuthorization
	}

	rows, err := s.repos.Keys(s.db).ListByRequest(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("list bundle: %w", err)
	}

	out := make([]EncryptionKey, 0, len(rows))
	for _, row := range rows {
		key, err := s.unwrap(row)
		if err != nil {
			s.log(ctx).Warn("escrow: skipping unreadable bundle entry", "access_request_id", requestID, "record_id", row.RecordID)
			continue
		}
		out = append(out, *key)
	}
	return out, nil
}

func (s *escrowService) wrap(requestID uuid.UUID, position int, k EncryptionKey) (repo.EscrowedKey, error) {
	raw, err := crypto.HexToKey(k.Key)
	if err != nil {
		return repo.EscrowedKey{}, err
	}
	wrapped, err := crypto.WrapKey(s.master, raw)
	if err != nil {
		return repo.EscrowedKey{}, err
	}
	return repo.EscrowedKey{
		AccessRequestID:  requestID,
		RecordID:         k.RecordID,
		Position:         position,
		WrappedKey:       wrapped,
		IV:               k.IV,
		OriginalFileName: k.OriginalFileName,
		OriginalFileType: k.OriginalFileType,
	}, nil
}

func (s *escrowService) unwrap(row repo.EscrowedKey) (*EncryptionKey, error) {
	raw, err := crypto.UnwrapKey(s.master, row.WrappedKey)
	if err != nil {
		return nil, err
	}
	return &EncryptionKey{
		RecordID:         row.RecordID,
		Key:              crypto.KeyToHex(raw),
		IV:               row.IV,
		OriginalFileName: row.OriginalFileName,
		OriginalFileType: row.OriginalFileType,
	}, nil
}
