package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/velonet/lead-intake-api/internal/domain"
)

// supabaseCustomer maps the customers table columns.
type supabaseCustomer struct {
	ID           string `json:"id,omitempty"`
	LeadID       string `json:"lead_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	WhatsApp     string `json:"whatsapp"`
	PlanType     string `json:"plan_type"`
	CEP          string `json:"cep"`
	Street       string `json:"street,omitempty"`
	Number       string `json:"number,omitempty"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	CPF          string `json:"cpf,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

func (r supabaseCustomer) toDomain() domain.Customer {
	created, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return domain.Customer{
		ID:       r.ID,
		LeadID:   r.LeadID,
		Name:     r.Name,
		Email:    r.Email,
		WhatsApp: r.WhatsApp,
		PlanType: domain.PlanType(r.PlanType),
		CEP:      r.CEP,
		Address: domain.Address{
			Street:       r.Street,
			Number:       r.Number,
			Complement:   r.Complement,
			Neighborhood: r.Neighborhood,
			City:         r.City,
			State:        r.State,
		},
		CPF:       r.CPF,
		CreatedAt: created,
	}
}

// CreateCustomer inserts a customer row from a converted lead.
func (c *Client) CreateCustomer(ctx context.Context, cust *domain.Customer) (*domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateCustomer")
	defer span.End()

	row := supabaseCustomer{
		LeadID:       cust.LeadID,
		Name:         cust.Name,
		Email:        cust.Email,
		WhatsApp:     cust.WhatsApp,
		PlanType:     string(cust.PlanType),
		CEP:          cust.CEP,
		Street:       cust.Address.Street,
		Number:       cust.Address.Number,
		Complement:   cust.Address.Complement,
		Neighborhood: cust.Address.Neighborhood,
		City:         cust.Address.City,
		State:        cust.Address.State,
		CPF:          cust.CPF,
	}

	var created *domain.Customer

	err := c.execute(ctx, func() error {
		body, err := c.doPost(ctx, "customers", row)
		if err != nil {
			return err
		}

		var rows []supabaseCustomer
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode created customer: %w", err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("supabase returned no customer row")
		}

		cu := rows[0].toDomain()
		created = &cu
		return nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/customers", Err: err}
	}

	return created, nil
}

// ListCustomers pages through the customers table.
func (c *Client) ListCustomers(ctx context.Context, page, pageSize int) ([]domain.Customer, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCustomers")
	defer span.End()

	path := rangePath("customers?order=created_at.desc", page, pageSize)

	var customers []domain.Customer

	err := c.execute(ctx, func() error {
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if emptyBody(body) {
			customers = []domain.Customer{}
			return nil
		}

		var rows []supabaseCustomer
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode customers: %w", err)
		}

		customers = make([]domain.Customer, 0, len(rows))
		for _, r := range rows {
			customers = append(customers, r.toDomain())
		}
		return nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/customers", Err: err}
	}

	return customers, nil
}

// CountCustomers returns the number of customer rows.
func (c *Client) CountCustomers(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CountCustomers")
	defer span.End()

	var total int
	err := c.execute(ctx, func() error {
		n, err := c.doCount(ctx, "customers")
		if err != nil {
			return err
		}
		total = n
		return nil
	})

	if err != nil {
		return 0, &domain.ErrExternalService{Service: "supabase/customers", Err: err}
	}
	return total, nil
}
