package constants

const (
	// ConfigName is the config file name without extension, looked up in the --config directory.
	ConfigName   = "config"
	ConfigFormat = "yaml"

	// EnvPrefix prefixes every env override, e.g. MEDVAULT_DATABASE_HOST.
	EnvPrefix = "MEDVAULT"

	ServiceName = "medvault_backend"
)

// NATS subjects. The trailing token is the entity id.
const (
	SubjectAccessRequested = "medvault.access.requested"
	SubjectAccessGranted   = "medvault.access.granted"
	SubjectAccessDenied    = "medvault.access.denied"
	SubjectAccessRevoked   = "medvault.access.revoked"
	SubjectRecordDeleted   = "medvault.record.deleted"
)
