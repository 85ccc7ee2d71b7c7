package domain

import "time"

// WebhookConfig is the single configuration row controlling outbound lead
// notifications. Method selects the delivery style: POST sends the JSON
// payload, GET flattens it into query parameters.
type WebhookConfig struct {
	URL     string `json:"url"`
	Method  string `json:"method"`
	Enabled bool   `json:"enabled"`
}

// Plan is one marketing plan as shown on the public site.
type Plan struct {
	Name     string   `json:"name"`
	Type     PlanType `json:"type"`
	SpeedMbs int      `json:"speed_mbps"`
	PriceCts int      `json:"price_cents"`
	Featured bool     `json:"featured"`
}

// MarketingConfig is the editable content of the public marketing surface.
type MarketingConfig struct {
	Headline   string `json:"headline"`
	Subline    string `json:"subline,omitempty"`
	WhatsApp   string `json:"whatsapp,omitempty"`
	Plans      []Plan `json:"plans"`
	ShowPrices bool   `json:"show_prices"`
}

// User roles for the administrative surface.
const (
	RoleAdmin     = "admin"
	RoleAttendant = "attendant"
)

// UserRole binds a backend user to a role.
type UserRole struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ImportLog records one bulk viability import.
type ImportLog struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Rows      int       `json:"rows"`
	Accepted  int       `json:"accepted"`
	Rejected  int       `json:"rejected"`
	CreatedAt time.Time `json:"created_at"`
}

// AttendantCredential is a stored login for the attendant backend.
type AttendantCredential struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash"`
	Active       bool   `json:"active"`
}

// LoginRequest is the attendant login submission.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token and the resolved role.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
	Role        string    `json:"role"`
}

// DashboardSummary aggregates counts for the attendant dashboard.
type DashboardSummary struct {
	TotalLeads      int `json:"total_leads"`
	WaitlistedLeads int `json:"waitlisted_leads"`
	TotalCustomers  int `json:"total_customers"`
	ViabilityRows   int `json:"viability_rows"`
}

// IntakeMetrics is a point-in-time read of the intake counters, served to
// the attendant dashboard.
type IntakeMetrics struct {
	SessionsStarted   int64   `json:"sessions_started"`
	LeadsCreated      int64   `json:"leads_created"`
	WaitlistJoins     int64   `json:"waitlist_joins"`
	ViabilityLookups  int64   `json:"viability_lookups"`
	ViabilityCacheHit float64 `json:"viability_cache_hit_rate"`
	WebhooksDelivered int64   `json:"webhooks_delivered"`
	WebhookFailures   int64   `json:"webhook_failures"`
}
