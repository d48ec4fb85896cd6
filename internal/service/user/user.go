// Package user manages patients and doctors and the share codes patients hand
// to doctors to start an access request.
package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/Alijeyrad/medvault_backend/internal/repo"
	"github.com/Alijeyrad/medvault_backend/pkg/authorize"
	"github.com/Alijeyrad/medvault_backend/pkg/sms"
	"github.com/Alijeyrad/medvault_backend/pkg/util/codes"
)

// shareCodeAttempts bounds retries on a share code collision.
const shareCodeAttempts = 5

type CreateRequest struct {
	Role      repo.Role
	FullName  string
	Email     string
	Phone     string
	Specialty string
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*repo.User, error)
	Get(ctx context.Context, id uuid.UUID) (*repo.User, error)
	ByShareCode(ctx context.Context, code string) (*repo.User, error)

	// ShareCode returns the patient's share code formatted for display,
	// e.g. "7KQ2-MX9P-RT4A".
	ShareCode(ctx context.Context, patientID uuid.UUID) (string, error)

	// RotateShareCode replaces the patient's share code. Existing access
	// requests are unaffected.
	RotateShareCode(ctx context.Context, patientID uuid.UUID) (string, error)
}

type UserService struct {
	db        *sql.DB
	repos     repo.Manager
	authorize authorize.IAuthorization
	codes     codes.Config
	region    string
}

func New(db *sql.DB, repos repo.Manager, authz authorize.IAuthorization, codeCfg codes.Config, phoneRegion string) *UserService {
	return &UserService{
		db:        db,
		repos:     repos,
		authorize: authz,
		codes:     codeCfg,
		region:    phoneRegion,
	}
}

func (s *UserService) Create(ctx context.Context, req CreateRequest) (*repo.User, error) {
	if !req.Role.Valid() {
		return nil, ErrInvalidRole
	}
	name := strings.TrimSpace(req.FullName)
	if name == "" || len(name) > 200 {
		return nil, ErrInvalidName
	}
	addr, err := mail.ParseAddress(req.Email)
	if err != nil {
		return nil, ErrInvalidEmail
	}

	u := &repo.User{
		ID:       uuid.New(),
		Role:     req.Role,
		FullName: name,
		Email:    strings.ToLower(addr.Address),
	}

	if req.Phone != "" {
		phone, err := sms.NormalizePhone(req.Phone, s.region)
		if err != nil {
			return nil, ErrInvalidPhone
		}
		u.Phone = &phone
	}
	if req.Role == repo.RoleDoctor && req.Specialty != "" {
		specialty := strings.TrimSpace(req.Specialty)
		u.Specialty = &specialty
	}

	users := s.repos.Users(s.db)
	for attempt := 0; ; attempt++ {
		if u.Role == repo.RolePatient {
			code, err := codes.GenerateShareCode(s.codes)
			if err != nil {
				return nil, fmt.Errorf("generate share code: %w", err)
			}
			u.ShareCode = &code
		}

		err := users.Create(ctx, u)
		if err == nil {
			break
		}
		if !errors.Is(err, repo.ErrConflict) {
			return nil, fmt.Errorf("create user: %w", err)
		}
		// Email is the only other unique column.
		if u.Role != repo.RolePatient || attempt+1 >= shareCodeAttempts {
			return nil, ErrEmailAlreadyExists
		}
		if _, lookupErr := users.GetByShareCode(ctx, *u.ShareCode); lookupErr != nil {
			return nil, ErrEmailAlreadyExists
		}
	}

	if s.authorize != nil {
		if err := authorize.AssignUserRole(ctx, s.authorize, u.ID.String(), string(u.Role)); err != nil {
			slog.Error("user: assign casbin role failed", "user_id", u.ID, "role", u.Role, "err", err)
			return nil, fmt.Errorf("assign role: %w", err)
		}
	}

	return u, nil
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*repo.User, error) {
	u, err := s.repos.Users(s.db).Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

func (s *UserService) ByShareCode(ctx context.Context, code string) (*repo.User, error) {
	u, err := s.repos.Users(s.db).GetByShareCode(ctx, codes.ParseCode(code))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

func (s *UserService) ShareCode(ctx context.Context, patientID uuid.UUID) (string, error) {
	u, err := s.Get(ctx, patientID)
	if err != nil {
		return "", err
	}
	if u.Role != repo.RolePatient || u.ShareCode == nil {
		return "", ErrNotPatient
	}
	return codes.FormatCode(*u.ShareCode, codes.ShareCodeGroupSize), nil
}

func (s *UserService) RotateShareCode(ctx context.Context, patientID uuid.UUID) (string, error) {
	u, err := s.Get(ctx, patientID)
	if err != nil {
		return "", err
	}
	if u.Role != repo.RolePatient {
		return "", ErrNotPatient
	}

	users := s.repos.Users(s.db)
	for attempt := 0; attempt < shareCodeAttempts; attempt++ {
		code, err := codes.GenerateShareCode(s.codes)
		if err != nil {
			return "", fmt.Errorf("generate share code: %w", err)
		}
		err = users.UpdateShareCode(ctx, patientID, code)
		if err == nil {
			return codes.FormatCode(code, codes.ShareCodeGroupSize), nil
		}
		if !errors.Is(err, repo.ErrConflict) {
			return "", fmt.Errorf("update share code: %w", err)
		}
	}
	return "", fmt.Errorf("update share code: %w", repo.ErrConflict)
}
