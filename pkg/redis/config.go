package redis

import (
	"time"

	"github.com/Alijeyrad/medvault_backend/config"
)

// Config is the resolved client configuration. Zero values are filled by
// withDefaults before a client is built.
type Config struct {
	Addr     string
	DB       int
	Username string
	Password string

	PoolSize     int
	MinIdleConns int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	pick := func(v *time.Duration, d time.Duration) {
		if *v <= 0 {
			*v = d
		}
	}
	if c.PoolSize <= 0 {
		c.PoolSize = def.PoolSize
	}
	if c.MinIdleConns <= 0 {
		c.MinIdleConns = def.MinIdleConns
	}
	pick(&c.DialTimeout, def.DialTimeout)
	pick(&c.ReadTimeout, def.ReadTimeout)
	pick(&c.WriteTimeout, def.WriteTimeout)
	return c
}

// FromCentralConfig maps the redis section of the app config.
func FromCentralConfig(c config.RedisConfig) Config {
	return Config{
		Addr:         c.Addr,
		DB:           c.DB,
		Username:     c.Username,
		Password:     c.Password,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		DialTimeout:  seconds(c.DialTimeoutSeconds),
		ReadTimeout:  seconds(c.ReadTimeoutSeconds),
		WriteTimeout: seconds(c.WriteTimeoutSeconds),
	}.withDefaults()
}
