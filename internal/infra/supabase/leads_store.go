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

// supabaseLead maps the leads table columns to our domain.
type supabaseLead struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	WhatsApp     string `json:"whatsapp"`
	PlanType     string `json:"plan_type"`
	BusinessType string `json:"business_type,omitempty"`
	CEP          string `json:"cep"`
	Street       string `json:"street,omitempty"`
	Number       string `json:"number,omitempty"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Reference    string `json:"reference,omitempty"`
	CPF          string `json:"cpf,omitempty"`
	RG           string `json:"rg,omitempty"`
	BirthDate    string `json:"birth_date,omitempty"`
	Status       string `json:"status"`
	Waitlist     bool   `json:"waitlist"`
	AssignedTo   string `json:"assigned_to,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

func leadRow(l *domain.Lead) supabaseLead {
	return supabaseLead{
		Name:         l.Name,
		Email:        l.Email,
		WhatsApp:     l.WhatsApp,
		PlanType:     string(l.PlanType),
		BusinessType: l.BusinessType,
		CEP:          l.CEP,
		Street:       l.Address.Street,
		Number:       l.Address.Number,
		Complement:   l.Address.Complement,
		Neighborhood: l.Address.Neighborhood,
		City:         l.Address.City,
		State:        l.Address.State,
		Reference:    l.Address.Reference,
		CPF:          l.CPF,
		RG:           l.RG,
		BirthDate:    l.BirthDate,
		Status:       l.Status,
		Waitlist:     l.Waitlist,
		AssignedTo:   l.AssignedTo,
	}
}

func (r supabaseLead) toDomain() domain.Lead {
	created, _ := time.Parse(time.RFC3339, r.CreatedAt)
	updated, _ := time.Parse(time.RFC3339, r.UpdatedAt)
	return domain.Lead{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		WhatsApp:     r.WhatsApp,
		PlanType:     domain.PlanType(r.PlanType),
		BusinessType: r.BusinessType,
		CEP:          r.CEP,
		Address: domain.Address{
			Street:       r.Street,
			Number:       r.Number,
			Complement:   r.Complement,
			Neighborhood: r.Neighborhood,
			City:         r.City,
			State:        r.State,
			Reference:    r.Reference,
		},
		CPF:        r.CPF,
		RG:         r.RG,
		BirthDate:  r.BirthDate,
		Status:     r.Status,
		Waitlist:   r.Waitlist,
		AssignedTo: r.AssignedTo,
		CreatedAt:  created,
		UpdatedAt:  updated,
	}
}

// CreateLead inserts a lead row and returns the stored record.
func (c *Client) CreateLead(ctx context.Context, lead *domain.Lead) (*domain.Lead, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateLead")
	defer span.End()
	span.SetAttributes(attribute.Bool("lead.waitlist", lead.Waitlist))

	var created *domain.Lead

	err := c.execute(ctx, func() error {
		body, err := c.doPost(ctx, "leads", leadRow(lead))
		if err != nil {
			return err
		}

		var rows []supabaseLead
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode created lead: %w", err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("supabase returned no lead row")
		}

		l := rows[0].toDomain()
		created = &l
		return nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/leads", Err: err}
	}

	return created, nil
}

// ListLeads fetches leads ordered by creation, optionally filtered by status.
func (c *Client) ListLeads(ctx context.Context, status string, page, pageSize int) ([]domain.Lead, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListLeads")
	defer span.End()

	path := "leads?order=created_at.desc"
	if status != "" {
		path += "&status=eq." + url.QueryEscape(status)
	}
	path = rangePath(path, page, pageSize)

	var leads []domain.Lead

	err := c.execute(ctx, func() error {
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if emptyBody(body) {
			leads = []domain.Lead{}
			return nil
		}

		var rows []supabaseLead
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode leads: %w", err)
		}

		leads = make([]domain.Lead, 0, len(rows))
		for _, r := range rows {
			leads = append(leads, r.toDomain())
		}
		return nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/leads", Err: err}
	}

	return leads, nil
}

// GetLead fetches one lead by id.
func (c *Client) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetLead")
	defer span.End()
	span.SetAttributes(attribute.String("lead.id", id))

	var lead *domain.Lead

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("leads?id=eq.%s&limit=1", url.QueryEscape(id))
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if emptyBody(body) {
			return nil
		}

		var rows []supabaseLead
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode lead: %w", err)
		}
		if len(rows) > 0 {
			l := rows[0].toDomain()
			lead = &l
		}
		return nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/leads", Err: err}
	}
	if lead == nil {
		return nil, &domain.ErrNotFound{Resource: "lead", ID: id}
	}

	return lead, nil
}

// UpdateLeadStatus patches the status column of a lead.
func (c *Client) UpdateLeadStatus(ctx context.Context, id, status string) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateLeadStatus")
	defer span.End()

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("leads?id=eq.%s", url.QueryEscape(id))
		return c.doPatch(ctx, path, map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC().Format(time.RFC3339),
		})
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/leads", Err: err}
	}
	return nil
}

// AssignLead sets the attendant responsible for a lead.
func (c *Client) AssignLead(ctx context.Context, id, userID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.AssignLead")
	defer span.End()

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("leads?id=eq.%s", url.QueryEscape(id))
		return c.doPatch(ctx, path, map[string]any{
			"assigned_to": userID,
			"updated_at":  time.Now().UTC().Format(time.RFC3339),
		})
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/leads", Err: err}
	}
	return nil
}

// CountLeads returns the total number of leads, optionally only waitlisted.
func (c *Client) CountLeads(ctx context.Context, waitlistOnly bool) (int, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CountLeads")
	defer span.End()

	path := "leads"
	if waitlistOnly {
		path += "?waitlist=eq.true"
	}

	var total int
	err := c.execute(ctx, func() error {
		n, err := c.doCount(ctx, path)
		if err != nil {
			return err
		}
		total = n
		return nil
	})

	if err != nil {
		return 0, &domain.ErrExternalService{Service: "supabase/leads", Err: err}
	}
	return total, nil
}
