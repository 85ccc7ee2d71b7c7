package domain

import "time"

// PlanType identifies the commercial plan family a lead is interested in.
// Semi and dedicated plans are sold to businesses, so they require the
// business-type question during lead capture.
type PlanType string

const (
	PlanResidential PlanType = "residential"
	PlanSemi        PlanType = "semi"
	PlanDedicated   PlanType = "dedicated"
)

// Valid reports whether the plan type is one of the known values.
func (p PlanType) Valid() bool {
	switch p {
	case PlanResidential, PlanSemi, PlanDedicated:
		return true
	}
	return false
}

// RequiresBusinessType reports whether leads for this plan must state
// their business type.
func (p PlanType) RequiresBusinessType() bool {
	return p == PlanSemi || p == PlanDedicated
}

// Lead status values as stored in the leads table.
const (
	LeadStatusNew        = "new"
	LeadStatusContacted  = "contacted"
	LeadStatusConverted  = "converted"
	LeadStatusWaitlisted = "waitlisted"
)

// Address is the postal address attached to a lead or viability record.
type Address struct {
	Street       string `json:"street"`
	Number       string `json:"number,omitempty"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	Reference    string `json:"reference,omitempty"`
}

// LeadDraft accumulates the fields of one intake session. Fields are
// optional until the step that requires them completes; after that the
// step's fields are validated and non-empty.
type LeadDraft struct {
	Name         string   `json:"name,omitempty"`
	Email        string   `json:"email,omitempty"`
	WhatsApp     string   `json:"whatsapp,omitempty"`
	PlanType     PlanType `json:"plan_type,omitempty"`
	BusinessType string   `json:"business_type,omitempty"`
	CEP          string   `json:"cep,omitempty"`
	Address      Address  `json:"address"`
	CPF          string   `json:"cpf,omitempty"`
	RG           string   `json:"rg,omitempty"`
	BirthDate    string   `json:"birth_date,omitempty"`
}

// Lead is a persisted prospective customer record.
type Lead struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	WhatsApp     string    `json:"whatsapp"`
	PlanType     PlanType  `json:"plan_type"`
	BusinessType string    `json:"business_type,omitempty"`
	CEP          string    `json:"cep"`
	Address      Address   `json:"address"`
	CPF          string    `json:"cpf,omitempty"`
	RG           string    `json:"rg,omitempty"`
	BirthDate    string    `json:"birth_date,omitempty"`
	Status       string    `json:"status"`
	Waitlist     bool      `json:"waitlist"`
	AssignedTo   string    `json:"assigned_to,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Customer is a converted lead.
type Customer struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	WhatsApp  string    `json:"whatsapp"`
	PlanType  PlanType  `json:"plan_type"`
	CEP       string    `json:"cep"`
	Address   Address   `json:"address"`
	CPF       string    `json:"cpf,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
