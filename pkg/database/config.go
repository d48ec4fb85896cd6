package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/Alijeyrad/medvault_backend/config"
)

const defaultConnLifetime = 5 * time.Minute

// Config is one PostgreSQL target plus its pool limits.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders a libpq keyword/value string. Values are single-quoted so
// passwords with spaces or quotes survive.
func (c Config) DSN() string {
	pairs := []struct{ k, v string }{
		{"host", c.Host},
		{"port", fmt.Sprint(c.Port)},
		{"user", c.User},
		{"password", c.Password},
		{"dbname", c.DBName},
		{"sslmode", c.SSLMode},
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if p.v == "" {
			continue
		}
		parts = append(parts, p.k+"="+quote(p.v))
	}
	return strings.Join(parts, " ")
}

func quote(v string) string {
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// WithDB returns a copy pointing at another database on the same server.
func (c Config) WithDB(name string) Config {
	c.DBName = name
	return c
}

func FromCentralConfig(c config.DatabaseConfig) Config {
	out := Config{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		DBName:          c.DBName,
		SSLMode:         c.SSLMode,
		MaxOpenConns:    c.Pool.MaxOpenConns,
		MaxIdleConns:    c.Pool.MaxIdleConns,
		ConnMaxLifetime: time.Duration(c.Pool.ConnMaxLifetimeMin) * time.Minute,
	}
	if out.SSLMode == "" {
		out.SSLMode = "disable"
	}
	if out.ConnMaxLifetime <= 0 {
		out.ConnMaxLifetime = defaultConnLifetime
	}
	return out
}

// NewDSN is FromCentralConfig(c).DSN(). The casbin adapter takes a DSN.
func NewDSN(c config.DatabaseConfig) string {
	return FromCentralConfig(c).DSN()
}
