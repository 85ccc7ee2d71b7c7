package domain

import "time"

// Step identifies the current position of an intake session.
type Step string

const (
	StepLeadCapture    Step = "lead_capture"
	StepCepCheck       Step = "cep_check"
	StepAddressConfirm Step = "address_confirm"
	StepWaitlistOffer  Step = "waitlist_offer"
	StepDone           Step = "done"
)

// Terminal reports whether no further submits are accepted.
func (s Step) Terminal() bool { return s == StepDone }

// Notification kinds.
const (
	NotifySuccess = "success"
	NotifyError   = "error"
	NotifyInfo    = "info"
	NotifyWarning = "warning"
)

// Notification is the transient per-session banner. At most one is active;
// a new one replaces the previous. ExpiresAt implements auto-dismissal.
type Notification struct {
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Active reports whether the notification should still be shown at t.
func (n *Notification) Active(t time.Time) bool {
	return n != nil && t.Before(n.ExpiresAt)
}

// IntakeSnapshot is the externally visible state of one intake session.
type IntakeSnapshot struct {
	SessionID    string           `json:"session_id"`
	Step         Step             `json:"step"`
	Loading      bool             `json:"loading"`
	Draft        LeadDraft        `json:"draft"`
	Viability    *ViabilityResult `json:"viability,omitempty"`
	Notification *Notification    `json:"notification,omitempty"`
	LeadID       string           `json:"lead_id,omitempty"`
}

// LeadCaptureInput is the first step's submission.
type LeadCaptureInput struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	WhatsApp     string   `json:"whatsapp"`
	PlanType     PlanType `json:"plan_type"`
	BusinessType string   `json:"business_type,omitempty"`
}

// AddressConfirmInput is the third step's submission. Street, neighborhood,
// city and state come pre-filled from the viability lookup but remain
// editable by the user.
type AddressConfirmInput struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	Reference    string `json:"reference,omitempty"`
	CPF          string `json:"cpf"`
	RG           string `json:"rg"`
	BirthDate    string `json:"birth_date"`
}

// Waitlist offer actions.
const (
	WaitlistJoin    = "join"
	WaitlistDecline = "decline"
)
