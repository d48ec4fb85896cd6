package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/Alijeyrad/medvault_backend/pkg/constants"
	"github.com/spf13/viper"
)

func newViper(configPath string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(constants.ConfigName)
	v.SetConfigType(constants.ConfigFormat)
	v.AddConfigPath(configPath)

	// Allow env vars to override config values.
	// e.g. MEDVAULT_DATABASE_HOST overrides database.host
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func ReadConfig(configPath string) (*Config, error) {
	v := newViper(configPath)

	// Read the config file (optional in Docker environments)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %v", err)
		}
		if os.Getenv(constants.EnvPrefix+"_DATABASE_HOST") == "" {
			return nil, fmt.Errorf("config file not found in %q and %s_DATABASE_HOST is not set", configPath, constants.EnvPrefix)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %v", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults registers every key viper should know about so AutomaticEnv
// can populate values that are absent from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "medvault")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.rate_limit.max", 20)
	v.SetDefault("server.rate_limit.expiration_seconds", 30)
	v.SetDefault("authentication.encryption_key", "")
	v.SetDefault("authentication.session_ttl_minutes", 60)
	v.SetDefault("authentication.paseto.mode", "local")
	v.SetDefault("authentication.paseto.local_key_hex", "")
	v.SetDefault("authentication.paseto.issuer", "medvault")
	v.SetDefault("authentication.paseto.audience", "medvault-api")
	v.SetDefault("authentication.paseto.access_ttl_minutes", 60)
	v.SetDefault("authorization.casbin_model_path", "")
	v.SetDefault("authorization.enable_audit", true)
	v.SetDefault("authorization.superadmin_bypass", true)
	v.SetDefault("authorization.policy_sync_enabled", true)
	v.SetDefault("codes.share_code_length", 12)
	v.SetDefault("records.max_upload_mb", 25)
	v.SetDefault("key_cache.ttl_minutes", 30)
	v.SetDefault("key_cache.cleanup_minutes", 10)
	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.token", "")
	v.SetDefault("client.timeout_seconds", 30)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.publish_retries", 3)
	v.SetDefault("observability.service_name", constants.ServiceName)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output.stdout", true)
}

// ReadClientConfig reads only what the client commands need. The file is
// optional and server settings are not validated.
func ReadClientConfig(configPath string) (*Config, error) {
	v := newViper(configPath)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %v", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %v", err)
	}
	return &config, nil
}

func MustReadConfig(path string) *Config {
	config, err := ReadConfig(path)
	if err != nil {
		panic(err)
	}
	return config
}
