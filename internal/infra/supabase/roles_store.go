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

// supabaseUserRole maps the user_roles table.
type supabaseUserRole struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// GetUserRole fetches the role row for a backend user. No row means no
// access at all; callers treat that as forbidden.
func (c *Client) GetUserRole(ctx context.Context, userID string) (*domain.UserRole, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetUserRole")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	var role *domain.UserRole

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("user_roles?user_id=eq.%s&limit=1", url.QueryEscape(userID))
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if emptyBody(body) {
			return nil
		}

		var rows []supabaseUserRole
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode user role: %w", err)
		}
		if len(rows) > 0 {
			updated, _ := time.Parse(time.RFC3339, rows[0].UpdatedAt)
			role = &domain.UserRole{
				UserID:    rows[0].UserID,
				Role:      rows[0].Role,
				UpdatedAt: updated,
			}
		}
		return nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/user_roles", Err: err}
	}

	return role, nil
}

// UpsertUserRole inserts or updates a user's role row.
func (c *Client) UpsertUserRole(ctx context.Context, role *domain.UserRole) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpsertUserRole")
	defer span.End()

	err := c.execute(ctx, func() error {
		_, err := c.doUpsert(ctx, "user_roles", "user_id", supabaseUserRole{
			UserID:    role.UserID,
			Role:      role.Role,
			UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		})
		return err
	})

	if err != nil {
		return &domain.ErrExternalService{Service: "supabase/user_roles", Err: err}
	}
	return nil
}

// supabaseAttendantLogin maps the attendant_logins table.
type supabaseAttendantLogin struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	Active       bool   `json:"active"`
}

// GetCredentialByEmail fetches a stored attendant login.
func (c *Client) GetCredentialByEmail(ctx context.Context, email string) (*domain.AttendantCredential, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetCredentialByEmail")
	defer span.End()

	var cred *domain.AttendantCredential

	err := c.execute(ctx, func() error {
		path := fmt.Sprintf("attendant_logins?email=eq.%s&limit=1", url.QueryEscape(email))
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if emptyBody(body) {
			return nil
		}

		var rows []supabaseAttendantLogin
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode attendant login: %w", err)
		}
		if len(rows) > 0 {
			cred = &domain.AttendantCredential{
				UserID:       rows[0].UserID,
				Email:        rows[0].Email,
				PasswordHash: rows[0].PasswordHash,
				Active:       rows[0].Active,
			}
		}
		return nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/attendant_logins", Err: err}
	}

	return cred, nil
}
