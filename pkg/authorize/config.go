package authorize

import "github.com/Alijeyrad/medvault_backend/config"

// Config holds configuration for the authorization system
type Config struct {
	// CasbinModelPath is the path to the Casbin model file. Empty means
	// DefaultModel.
	CasbinModelPath string

	// EnableAudit wraps the enforcer in AuditedAuthorization.
	EnableAudit bool

	// SuperadminBypass lets RoleSysAdmin skip policy evaluation.
	SuperadminBypass bool

	// PolicySyncEnabled subscribes to policy changes from other instances
	// through a PostgreSQL LISTEN/NOTIFY watcher.
	PolicySyncEnabled bool
}

func DefaultConfig() Config {
	return Config{
		EnableAudit:       true,
		SuperadminBypass:  true,
		PolicySyncEnabled: true,
	}
}

// FromCentralConfig converts central config.AuthorizationConfig to package Config
func FromCentralConfig(c config.AuthorizationConfig) Config {
	return Config{
		CasbinModelPath:   c.CasbinModelPath,
		EnableAudit:       c.EnableAudit,
		SuperadminBypass:  c.SuperadminBypass,
		PolicySyncEnabled: c.PolicySyncEnabled,
	}
}
