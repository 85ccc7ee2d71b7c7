package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/velonet/lead-intake-api/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// supabaseViability maps the viability table columns. A row here is the
// authoritative coverage answer for its CEP.
type supabaseViability struct {
	CEP          string `json:"cep"`
	Viable       bool   `json:"viable"`
	Street       string `json:"street,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

func viabilityRow(rec *domain.ViabilityRecord) supabaseViability {
	row := supabaseViability{
		CEP:       rec.CEP,
		Viable:    rec.Viable,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if rec.Address != nil {
		row.Street = rec.Address.Street
		row.Neighborhood = rec.Address.Neighborhood
		row.City = rec.Address.City
		row.State = rec.Address.State
	}
	return row
}

func (r supabaseViability) toDomain() domain.ViabilityRecord {
	updated, _ := time.Parse(time.RFC3339, r.UpdatedAt)
	rec := domain.ViabilityRecord{
		CEP:       r.CEP,
		Viable:    r.Viable,
		UpdatedAt: updated,
	}
	if r.Street != "" || r.City != "" {
		rec.Address = &domain.Address{
			Street:       r.Street,
			Neighborhood: r.Neighborhood,
			City:         r.City,
			State:        r.State,
		}
	}
	return rec
}

// GetViability fetches the coverage row for a normalized CEP. Returns
// (nil, nil) when no row exists, which sends the caller to the lookup API.
func (c *Client) GetViability(ctx context.Context, cep string) (*domain.ViabilityRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetViability")
	defer span.End()
	span.SetAttributes(attribute.String("cep", cep))

	var rec *domain.ViabilityRecord

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("viability?cep=eq.%s&limit=1", url.QueryEscape(cep))
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if emptyBody(body) {
			return nil
		}

		var rows []supabaseViability
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode viability: %w", err)
		}
		if len(rows) > 0 {
			r := rows[0].toDomain()
			rec = &r
		}
		return nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/viability", Err: err}
	}

	return rec, nil
}

// UpsertViability inserts or updates the coverage row for a CEP.
func (c *Client) UpsertViability(ctx context.Context, rec *domain.ViabilityRecord) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertViability")
	defer span.End()
	span.SetAttributes(attribute.String("cep", rec.CEP))

	err := c.execute(ctx, func() error {
		_, err := c.doUpsert(ctx, "viability", "cep", viabilityRow(rec))
		return err
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/viability", Err: err}
	}
	return nil
}

// ListViability pages through the coverage table.
func (c *Client) ListViability(ctx context.Context, page, pageSize int) ([]domain.ViabilityRecord, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListViability")
	defer span.End()

	path := rangePath("viability?order=cep.asc", page, pageSize)

	var recs []domain.ViabilityRecord

	err := c.execute(ctx, func() error {
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if emptyBody(body) {
			recs = []domain.ViabilityRecord{}
			return nil
		}

		var rows []supabaseViability
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode viability rows: %w", err)
		}

		recs = make([]domain.ViabilityRecord, 0, len(rows))
		for _, r := range rows {
			recs = append(recs, r.toDomain())
		}
		return nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/viability", Err: err}
	}

	return recs, nil
}

// CountViability returns the number of coverage rows.
func (c *Client) CountViability(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CountViability")
	defer span.End()

	var total int
	err := c.execute(ctx, func() error {
		n, err := c.doCount(ctx, "viability")
		if err != nil {
			return err
		}
		total = n
		return nil
	})

	if err != nil {
		return 0, &domain.ErrExternalService{Service: "supabase/viability", Err: err}
	}
	return total, nil
}
