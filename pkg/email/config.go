package email

import (
	"time"

	"github.com/Alijeyrad/medvault_backend/config"
)

type Config struct {
	Enabled bool
	From    string

	Host     string
	Port     int
	Username string
	Password string
	// ImplicitTLS dials TLS directly (port 465). Otherwise STARTTLS is used
	// when the server offers it.
	ImplicitTLS bool
	Timeout     time.Duration

	// Used by the notification templates.
	AppName string
	BaseURL string
}

func DefaultConfig() Config {
	return Config{
		Port:    587,
		Timeout: 30 * time.Second,
		AppName: "MedVault",
	}
}

func FromCentralConfig(c config.EmailConfig) Config {
	out := DefaultConfig()
	out.Enabled = c.Enabled
	out.From = c.From
	out.Host = c.SMTP.Host
	out.Username = c.SMTP.Username
	out.Password = c.SMTP.Password
	out.ImplicitTLS = c.SMTP.UseTLS
	out.BaseURL = c.BaseURL
	if c.SMTP.Port > 0 {
		out.Port = c.SMTP.Port
	}
	if c.SMTP.TimeoutSeconds > 0 {
		out.Timeout = time.Duration(c.SMTP.TimeoutSeconds) * time.Second
	}
	if c.AppName != "" {
		out.AppName = c.AppName
	}
	return out
}
