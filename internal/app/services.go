package app

import (
	"database/sql"
	"log/slog"

	"go.uber.org/fx"

	"github.com/Alijeyrad/medvault_backend/config"
	"github.com/Alijeyrad/medvault_backend/internal/events"
	"github.com/Alijeyrad/medvault_backend/internal/repo"
	"github.com/Alijeyrad/medvault_backend/internal/service/access"
	"github.com/Alijeyrad/medvault_backend/internal/service/escrow"
	"github.com/Alijeyrad/medvault_backend/internal/service/record"
	"github.com/Alijeyrad/medvault_backend/internal/service/user"
	"github.com/Alijeyrad/medvault_backend/pkg/authorize"
	"github.com/Alijeyrad/medvault_backend/pkg/observability"
	pasetotoken "github.com/Alijeyrad/medvault_backend/pkg/paseto"
	s3pkg "github.com/Alijeyrad/medvault_backend/pkg/s3"
	"github.com/Alijeyrad/medvault_backend/pkg/util/codes"
)

// ServiceModule provides all application service dependencies.
var ServiceModule = fx.Module("services",
	fx.Provide(
		ProvideUserService,
		ProvideEscrowService,
		ProvideAccessService,
		ProvideRecordService,
		ProvidePasetoManager,
	),
)

func ProvideUserService(db *sql.DB, repos repo.Manager, authz authorize.IAuthorization, cfg *config.Config) user.Service {
	return user.New(db, repos, authz, codes.FromCentralConfig(cfg.Codes), cfg.SMS.DefaultRegion)
}

func ProvideEscrowService(db *sql.DB, repos repo.Manager, master MasterKey, metrics *observability.KeyMetrics) escrow.Service {
	return escrow.New(db, repos, master, slog.Default().With("component", "escrow"), metrics)
}

func ProvideAccessService(db *sql.DB, repos repo.Manager, esc escrow.Service, pub events.Publisher, metrics *observability.KeyMetrics) access.Service {
	return access.New(db, repos, esc, pub, slog.Default().With("component", "access"), metrics)
}

func ProvideRecordService(
	db *sql.DB,
	repos repo.Manager,
	blobs *s3pkg.Client,
	esc escrow.Service,
	pub events.Publisher,
	master MasterKey,
	cfg *config.Config,
) record.Service {
	maxUpload := int64(cfg.Records.MaxUploadMB) << 20
	return record.New(db, repos, blobs, esc, pub, slog.Default().With("component", "record"), master, maxUpload)
}

func ProvidePasetoManager(cfg *config.Config) (*pasetotoken.Manager, error) {
	return pasetotoken.NewPasetoManager(cfg)
}
