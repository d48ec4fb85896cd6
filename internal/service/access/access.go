// Package access implements the access request lifecycle between doctors and
// patients: pending, then granted or denied, and granted to revoked.
//
// Every transition is a conditional update on the current status; the
// affected row count decides whether the caller won. Grant writes the key
// bundle and Revoke scrubs it in the same transaction as the status change.
package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medvault_backend/internal/events"
	"github.com/Alijeyrad/medvault_backend/internal/repo"
	"github.com/Alijeyrad/medvault_backend/pkg/constants"
	"github.com/Alijeyrad/medvault_backend/pkg/observability"
	"github.com/Alijeyrad/medvault_backend/pkg/reqctx"
	"github.com/Alijeyrad/medvault_backend/pkg/util/codes"
)

// ---------------------------------------------------------------------------
// Dependencies
// ---------------------------------------------------------------------------

// Escrow is the part of the escrow service the state machine drives.
type Escrow interface {
	Deposit(ctx context.Context, tx repo.DBTX, req *repo.AccessRequest) error
	Scrub(ctx context.Context, tx repo.DBTX, requestID uuid.UUID) error
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

type Service interface {
	// Request opens a pending request from doctorID to the patient holding
	// shareCode.
	Request(ctx context.Context, doctorID uuid.UUID, shareCode string) (*repo.AccessRequest, error)

	Grant(ctx context.Context, patientID, requestID uuid.UUID) (*repo.AccessRequest, error)
	Deny(ctx context.Context, patientID, requestID uuid.UUID) (*repo.AccessRequest, error)
	Revoke(ctx context.Context, patientID, requestID uuid.UUID) (*repo.AccessRequest, error)

	// MarkSeen is the only change a doctor can make to a request.
	MarkSeen(ctx context.Context, doctorID, requestID uuid.UUID) error

	// Get returns a request visible to actorID, its doctor or its patient.
	Get(ctx context.Context, actorID, requestID uuid.UUID) (*repo.AccessRequest, error)
	ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*repo.AccessRequest, error)
	ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*repo.AccessRequest, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type accessService struct {
	db      *sql.DB
	repos   repo.Manager
	escrow  Escrow
	events  events.Publisher
	logger  *slog.Logger
	metrics *observability.KeyMetrics
	now     func() time.Time
}

func New(db *sql.DB, repos repo.Manager, escrow Escrow, pub events.Publisher, logger *slog.Logger, metrics *observability.KeyMetrics) Service {
	if pub == nil {
		pub = events.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &accessService{
		db:      db,
		repos:   repos,
		escrow:  escrow,
		events:  pub,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

func (s *accessService) Request(ctx context.Context, doctorID uuid.UUID, shareCode string) (*repo.AccessRequest, error) {
	users := s.repos.Users(s.db)

	doctor, err := users.Get(ctx, doctorID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotDoctor
		}
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	if doctor.Role != repo.RoleDoctor {
		return nil, ErrNotDoctor
	}

	patient, err := users.GetByShareCode(ctx, codes.ParseCode(shareCode))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	if patient.Role != repo.RolePatient {
		return nil, ErrPatientNotFound
	}

	ar := &repo.AccessRequest{
		ID:              uuid.New(),
		DoctorID:        doctor.ID,
		PatientID:       patient.ID,
		DoctorName:      doctor.FullName,
		DoctorSpecialty: doctor.Specialty,
		PatientName:     patient.FullName,
		PatientEmail:    patient.Email,
		Status:          repo.StatusPending,
		RequestedAt:     s.now().UTC(),
	}
	if err := s.repos.AccessRequests(s.db).Create(ctx, ar); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return nil, ErrRequestExists
		}
		return nil, fmt.Errorf("create request: %w", err)
	}

	s.metrics.Transition(ctx, string(repo.StatusPending))
	s.publish(ctx, constants.SubjectAccessRequested, ar.ID)
	return ar, nil
}

func (s *accessService) Grant(ctx context.Context, patientID, requestID uuid.UUID) (*repo.AccessRequest, error) {
	return s.resolve(ctx, patientID, requestID, repo.StatusGranted)
}

func (s *accessService) Deny(ctx context.Context, patientID, requestID uuid.UUID) (*repo.AccessRequest, error) {
	return s.resolve(ctx, patientID, requestID, repo.StatusDenied)
}

func (s *accessService) resolve(ctx context.Context, patientID, requestID uuid.UUID, to repo.Status) (*repo.AccessRequest, error) {
	ar, err := s.owned(ctx, patientID, requestID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(ar.Status, to) {
		return nil, ErrAlreadyResolved
	}

	at := s.now().UTC()
	err = repo.WithTx(ctx, s.db, nil, func(ctx context.Context, tx repo.DBTX) error {
		if err := s.repos.AccessRequests(tx).Resolve(ctx, requestID, to, at); err != nil {
			if errors.Is(err, repo.ErrStaleState) {
				return ErrAlreadyResolved
			}
			return err
		}
		if to == repo.StatusGranted {
			ar.Status = to
			return s.escrow.Deposit(ctx, tx, ar)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyResolved) {
			return nil, err
		}
		return nil, fmt.Errorf("%s request: %w", to, err)
	}

	ar.Status = to
	ar.RespondedAt = &at

	s.metrics.Transition(ctx, string(to))
	if to == repo.StatusGranted {
		s.publish(ctx, constants.SubjectAccessGranted, ar.ID)
	} else {
		s.publish(ctx, constants.SubjectAccessDenied, ar.ID)
	}
	return ar, nil
}

func (s *accessService) Revoke(ctx context.Context, patientID, requestID uuid.UUID) (*repo.AccessRequest, error) {
	ar, err := s.owned(ctx, patientID, requestID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(ar.Status, repo.StatusRevoked) {
		return nil, ErrInvalidTransition
	}

	at := s.now().UTC()
	err = repo.WithTx(ctx, s.db, nil, func(ctx context.Context, tx repo.DBTX) error {
		if err := s.repos.AccessRequests(tx).Revoke(ctx, requestID, at); err != nil {
			if errors.Is(err, repo.ErrStaleState) {
				return ErrInvalidTransition
			}
			return err
		}
		return s.escrow.Scrub(ctx, tx, requestID)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("revoke request: %w", err)
	}

	ar.Status = repo.StatusRevoked
	ar.RevokedAt = &at

	s.metrics.Transition(ctx, string(repo.StatusRevoked))
	s.publish(ctx, constants.SubjectAccessRevoked, ar.ID)
	return ar, nil
}

// owned loads a request and checks it belongs to patientID.
func (s *accessService) owned(ctx context.Context, patientID, requestID uuid.UUID) (*repo.AccessRequest, error) {
	ar, err := s.repos.AccessRequests(s.db).Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	if ar.PatientID != patientID {
		return nil, ErrNotOwner
	}
	return ar, nil
}

func (s *accessService) MarkSeen(ctx context.Context, doctorID, requestID uuid.UUID) error {
	if err := s.repos.AccessRequests(s.db).MarkSeen(ctx, requestID, doctorID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

func (s *accessService) Get(ctx context.Context, actorID, requestID uuid.UUID) (*repo.AccessRequest, error) {
	ar, err := s.repos.AccessRequests(s.db).Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	if ar.PatientID != actorID && ar.DoctorID != actorID {
		return nil, ErrNotFound
	}
	return ar, nil
}

func (s *accessService) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*repo.AccessRequest, error) {
	return s.repos.AccessRequests(s.db).ListByPatient(ctx, patientID)
}

func (s *accessService) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*repo.AccessRequest, error) {
	return s.repos.AccessRequests(s.db).ListByDoctor(ctx, doctorID)
}

func (s *accessService) publish(ctx context.Context, subject string, id uuid.UUID) {
	if err := s.events.Publish(ctx, subject, id); err != nil {
		s.logger.With(reqctx.LogAttrs(ctx)...).Warn("access: publish event failed", "subject", subject, "access_request_id", id, "err", err)
	}
}
