// Package email sends notification mail over SMTP with gomail.
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/Alijeyrad/medvault_backend/config"
)

type Client struct {
	cfg  Config
	send func(*gomail.Message) error
}

func NewFromCentral(cfg config.EmailConfig) (*Client, error) {
	return New(FromCentralConfig(cfg))
}

func New(cfg Config) (*Client, error) {
	cfg.From = strings.TrimSpace(cfg.From)
	if cfg.Enabled {
		if cfg.Host == "" {
			return nil, fmt.Errorf("email: smtp host is required when enabled")
		}
		if cfg.From == "" {
			return nil, fmt.Errorf("email: from address is required when enabled")
		}
	}

	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.ImplicitTLS
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}

	return &Client{cfg: cfg, send: func(m *gomail.Message) error { return d.DialAndSend(m) }}, nil
}

// Config exposes AppName and BaseURL to template callers.
func (c *Client) Config() Config { return c.cfg }

func (c *Client) IsEnabled() bool { return c.cfg.Enabled }

// Send delivers m, giving up at the earlier of ctx's deadline and the
// configured SMTP timeout. gomail has no context support, so an abandoned
// dial keeps running in the background until the socket times out.
func (c *Client) Send(ctx context.Context, m Message) error {
	if !c.cfg.Enabled {
		return ErrDisabled
	}
	msg, err := c.compose(m)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.send(msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("email: smtp %s: %w", c.cfg.Host, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) compose(m Message) (*gomail.Message, error) {
	if c.cfg.From == "" {
		return nil, invalidf("from", "is empty")
	}
	m, err := m.normalize()
	if err != nil {
		return nil, err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", c.cfg.From)
	msg.SetHeader("Subject", m.Subject)
	for name, list := range map[string][]string{"To": m.To, "Cc": m.CC, "Bcc": m.BCC} {
		if len(list) > 0 {
			msg.SetHeader(name, list...)
		}
	}
	for k, v := range m.Headers {
		if k, v = strings.TrimSpace(k), strings.TrimSpace(v); k != "" && v != "" {
			msg.SetHeader(k, v)
		}
	}

	switch text, html := strings.TrimSpace(m.TextBody) != "", strings.TrimSpace(m.HTMLBody) != ""; {
	case text && html:
		msg.SetBody("text/plain", m.TextBody)
		msg.AddAlternative("text/html", m.HTMLBody)
	case html:
		msg.SetBody("text/html", m.HTMLBody)
	default:
		msg.SetBody("text/plain", m.TextBody)
	}
	return msg, nil
}
