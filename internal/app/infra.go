package app

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/medvault_backend/config"
	"github.com/Alijeyrad/medvault_backend/internal/events"
	"github.com/Alijeyrad/medvault_backend/internal/repo"
	"github.com/Alijeyrad/medvault_backend/pkg/authorize"
	"github.com/Alijeyrad/medvault_backend/pkg/crypto"
	"github.com/Alijeyrad/medvault_backend/pkg/database"
	"github.com/Alijeyrad/medvault_backend/pkg/email"
	"github.com/Alijeyrad/medvault_backend/pkg/observability"
	redispkg "github.com/Alijeyrad/medvault_backend/pkg/redis"
	s3pkg "github.com/Alijeyrad/medvault_backend/pkg/s3"
	"github.com/Alijeyrad/medvault_backend/pkg/sms"
)

// MasterKey wraps record keys at rest (authentication.encryption_key).
type MasterKey []byte

const migrateTimeout = time.Minute

// InfraModule provides connections to every backing service.
var InfraModule = fx.Module("infra",
	fx.Provide(
		ProvideDatabase,
		ProvideRepoManager,
		ProvideMasterKey,
		ProvideRedis,
		ProvideSessions,
		ProvideAuthorization,
		ProvideEmailClient,
		ProvideSMSClient,
		ProvideOTel,
		ProvideKeyMetrics,
		ProvideS3Client,
		ProvideNatsClient,
		ProvidePublisher,
	),
)

// closeOnStop runs fn when fx stops the app.
func closeOnStop(lc fx.Lifecycle, what string, fn func(context.Context) error) {
	lc.Append(fx.StopHook(func(ctx context.Context) error {
		slog.Debug("closing " + what)
		return fn(ctx)
	}))
}

func ProvideDatabase(lc fx.Lifecycle, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	closeOnStop(lc, "postgres pool", func(context.Context) error { return db.Close() })
	return db, nil
}

// ProvideRepoManager migrates the schema first when
// database.migrations.auto_migrate is set.
func ProvideRepoManager(cfg *config.Config, db *sql.DB) (repo.Manager, error) {
	m := repo.NewPostgresManager()
	if !cfg.Database.Migrations.AutoMigrate {
		return m, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()
	if err := m.RunMigrations(ctx, db); err != nil {
		return nil, err
	}
	slog.Info("schema migrated")
	return m, nil
}

func ProvideMasterKey(cfg *config.Config) (MasterKey, error) {
	key, err := crypto.KeyFromHex(cfg.Authentication.EncryptionKey)
	return MasterKey(key), err
}

func ProvideRedis(lc fx.Lifecycle, cfg *config.Config) (*redis.Client, error) {
	rdb, err := redispkg.NewRedisFromCentral(cfg.Redis)
	if err != nil {
		return nil, err
	}
	closeOnStop(lc, "redis client", func(context.Context) error { return rdb.Close() })
	return rdb, nil
}

func ProvideSessions(rdb *redis.Client) *redispkg.Sessions {
	return redispkg.NewSessions(rdb)
}

// ProvideAuthorization loads policies from casbin_database and, with
// authorization.enable_audit, logs every decision.
func ProvideAuthorization(lc fx.Lifecycle, cfg *config.Config) (authorize.IAuthorization, error) {
	acfg := authorize.FromCentralConfig(cfg.Authorization)
	enforcer, cleanup, err := authorize.NewEnforcer(acfg, database.NewDSN(cfg.CasbinDatabase))
	if err != nil {
		return nil, err
	}
	closeOnStop(lc, "casbin watcher", func(ctx context.Context) error {
		cleanup(ctx)
		return nil
	})

	auth, err := authorize.NewAuthorization(enforcer, acfg)
	if err != nil {
		return nil, err
	}
	if acfg.EnableAudit {
		return authorize.NewAuditedAuthorization(auth, slog.Default()), nil
	}
	return auth, nil
}

func ProvideEmailClient(cfg *config.Config) (*email.Client, error) {
	return email.NewFromCentral(cfg.Email)
}

func ProvideSMSClient(cfg *config.Config) (*sms.Client, error) {
	return sms.NewFromConfig(cfg.SMS)
}

func ProvideS3Client(cfg *config.Config) (*s3pkg.Client, error) {
	return s3pkg.New(cfg.S3)
}

func ProvideNatsClient(lc fx.Lifecycle, cfg *config.Config) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.Nats.URL,
		nats.Name(cfg.Observability.ServiceName),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	closeOnStop(lc, "nats connection", func(context.Context) error { return nc.Drain() })
	return nc, nil
}

func ProvidePublisher(nc *nats.Conn, cfg *config.Config) events.Publisher {
	return events.NewNatsPublisher(nc, cfg.Nats.PublishRetries, slog.Default())
}

// ProvideOTel is nil when observability is disabled. Consumers take it as an
// optional dependency.
func ProvideOTel(lc fx.Lifecycle, cfg *config.Config) (*observability.Provider, error) {
	if !cfg.Observability.Enabled {
		return nil, nil
	}
	provider, err := observability.Init(context.Background(), observability.FromCentralConfig(cfg))
	if err != nil {
		return nil, err
	}
	slog.Info("telemetry enabled",
		"tracing", provider.Tracer != nil,
		"metrics", provider.Meter != nil,
	)
	closeOnStop(lc, "telemetry providers", provider.Shutdown)
	return provider, nil
}

// ProvideKeyMetrics takes the provider so its instruments are created after
// the global meter provider is installed.
func ProvideKeyMetrics(_ *observability.Provider) *observability.KeyMetrics {
	return observability.NewKeyMetrics()
}
