package repo

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"

	"github.com/Alijeyrad/medvault_backend/internal/repo/migrations"
)

// Manager vends repositories bound to a DBTX so services can choose between
// the pool and an open transaction per call.
type Manager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db DBTX) UserRepository
	Records(db DBTX) RecordRepository
	AccessRequests(db DBTX) AccessRequestRepository
	Keys(db DBTX) KeyRepository
}

type PostgresManager struct{}

func NewPostgresManager() Manager {
	return &PostgresManager{}
}

func (m *PostgresManager) Users(db DBTX) UserRepository {
	return &PostgresUsers{db: db}
}

func (m *PostgresManager) Records(db DBTX) RecordRepository {
	return &PostgresRecords{db: db}
}

func (m *PostgresManager) AccessRequests(db DBTX) AccessRequestRepository {
	return &PostgresAccessRequests{db: db}
}

func (m *PostgresManager) Keys(db DBTX) KeyRepository {
	return &PostgresKeys{db: db}
}

// gooseUpContext is a seam for tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations.
func (m *PostgresManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
