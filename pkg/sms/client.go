// Package sms sends access notifications through sms.ir template messages.
package sms

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/arsmn/go-smsir/smsir"

	"github.com/Alijeyrad/medvault_backend/config"
)

var (
	ErrNoPhone    = errors.New("sms: phone number is required")
	ErrNoTemplate = errors.New("sms: template id is required")
)

// Client is a no-op when sms.enabled is false, so callers never branch on
// configuration.
type Client struct {
	templateID string
	send       func(context.Context, *smsir.UltraFastSendRequest) error
}

func NewFromConfig(cfg config.SMSConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{}, nil
	}
	if cfg.SMSIR.APIKey == "" {
		return nil, fmt.Errorf("sms: sms.ir api_key is required when enabled")
	}

	api := smsir.NewClient().WithAuthentication(cfg.SMSIR.APIKey, cfg.SMSIR.SecretKey)
	return &Client{
		templateID: cfg.SMSIR.TemplateID,
		send: func(ctx context.Context, req *smsir.UltraFastSendRequest) error {
			_, err := api.Verification.UltraFastSend(ctx, req)
			return err
		},
	}, nil
}

func (c *Client) IsEnabled() bool { return c.send != nil }

// SendAccessNotice fills the configured template's "name" (the other party)
// and "status" parameters.
func (c *Client) SendAccessNotice(ctx context.Context, phone, name, status string) error {
	return c.SendTemplate(ctx, phone, c.templateID, map[string]string{"name": name, "status": status})
}

func (c *Client) SendTemplate(ctx context.Context, phone, templateID string, params map[string]string) error {
	if !c.IsEnabled() {
		return nil
	}
	switch {
	case phone == "":
		return ErrNoPhone
	case templateID == "":
		return ErrNoTemplate
	}

	if err := c.send(ctx, &smsir.UltraFastSendRequest{
		Mobile:     phone,
		TemplateID: templateID,
		Parameters: templateParams(params),
	}); err != nil {
		return fmt.Errorf("sms: send template %s: %w", templateID, err)
	}
	return nil
}

// templateParams orders parameters by key so requests are reproducible.
func templateParams(params map[string]string) []smsir.UltraFastParameter {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]smsir.UltraFastParameter, len(keys))
	for i, k := range keys {
		out[i] = smsir.UltraFastParameter{Key: k, Value: params[k]}
	}
	return out
}
