package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/velonet/lead-intake-api/internal/domain"
)

// The configurations table holds one row per config key; the webhook
// config lives under key "webhook". marketing_config is its own table
// with a single row (id=1).

type supabaseConfiguration struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// GetWebhookConfig reads the webhook configuration row. A missing row
// means webhooks are not configured; callers get a disabled config.
func (c *Client) GetWebhookConfig(ctx context.Context) (*domain.WebhookConfig, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetWebhookConfig")
	defer span.End()

	cfg := &domain.WebhookConfig{Method: "POST"}

	err := c.execute(ctx, func() error {
		body, err := c.doGet(ctx, "configurations?key=eq.webhook&limit=1")
		if err != nil {
			return err
		}
		if emptyBody(body) {
			return nil
		}

		var rows []supabaseConfiguration
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode configuration: %w", err)
		}
		if len(rows) > 0 {
			if err := json.Unmarshal(rows[0].Value, cfg); err != nil {
				return fmt.Errorf("failed to decode webhook config: %w", err)
			}
		}
		return nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/configurations", Err: err}
	}

	return cfg, nil
}

// UpdateWebhookConfig upserts the webhook configuration row.
func (c *Client) UpdateWebhookConfig(ctx context.Context, cfg *domain.WebhookConfig) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateWebhookConfig")
	defer span.End()

	value, err := json.Marshal(cfg)
	if err != nil {
		return err
	}

	err = c.execute(ctx, func() error {
		_, err := c.doUpsert(ctx, "configurations", "key", supabaseConfiguration{
			Key:   "webhook",
			Value: value,
		})
		return err
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/configurations", Err: err}
	}
	return nil
}

type supabaseMarketingConfig struct {
	ID      int             `json:"id"`
	Content json.RawMessage `json:"content"`
}

// GetMarketingConfig reads the marketing content row.
func (c *Client) GetMarketingConfig(ctx context.Context) (*domain.MarketingConfig, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetMarketingConfig")
	defer span.End()

	cfg := &domain.MarketingConfig{}

	err := c.execute(ctx, func() error {
		body, err := c.doGet(ctx, "marketing_config?id=eq.1&limit=1")
		if err != nil {
			return err
		}
		if emptyBody(body) {
			return nil
		}

		var rows []supabaseMarketingConfig
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode marketing_config: %w", err)
		}
		if len(rows) > 0 {
			if err := json.Unmarshal(rows[0].Content, cfg); err != nil {
				return fmt.Errorf("failed to decode marketing content: %w", err)
			}
		}
		return nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/marketing_config", Err: err}
	}

	return cfg, nil
}

// UpdateMarketingConfig upserts the marketing content row.
func (c *Client) UpdateMarketingConfig(ctx context.Context, cfg *domain.MarketingConfig) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateMarketingConfig")
	defer span.End()

	content, err := json.Marshal(cfg)
	if err != nil {
		return err
	}

	err = c.execute(ctx, func() error {
		_, err := c.doUpsert(ctx, "marketing_config", "id", supabaseMarketingConfig{
			ID:      1,
			Content: content,
		})
		return err
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/marketing_config", Err: err}
	}
	return nil
}
