package s3

import (
	"errors"
	"time"

	"github.com/Alijeyrad/medvault_backend/config"
)

const defaultPresignTTL = 5 * time.Minute

var ErrNoBucket = errors.New("s3: bucket is required")

type Config struct {
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	// Endpoint points at an S3-compatible store such as MinIO. Setting it
	// switches to path-style addressing.
	Endpoint   string
	PresignTTL time.Duration
}

func FromCentralConfig(c config.S3Config) Config {
	ttl := time.Duration(c.PresignTTLSec) * time.Second
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}
	return Config{
		Bucket:     c.Bucket,
		Region:     c.Region,
		AccessKey:  c.AccessKeyID,
		SecretKey:  c.SecretAccessKey,
		Endpoint:   c.Endpoint,
		PresignTTL: ttl,
	}
}
