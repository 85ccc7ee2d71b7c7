package domain

import "time"

// ViabilityResult is the outcome of one serviceability check for a CEP.
// The CEP is always stored normalized (8 digits, no punctuation); masking
// is a display concern only.
type ViabilityResult struct {
	CEP     string   `json:"cep"`
	Viable  bool     `json:"viable"`
	Address *Address `json:"address,omitempty"`
	// Source records where the decision came from: "record" when a stored
	// viability row decided, "fallback" when the placeholder rule did.
	Source string `json:"source"`
}

// Viability decision sources.
const (
	ViabilitySourceRecord   = "record"
	ViabilitySourceFallback = "fallback"
)

// ViabilityRecord is a stored coverage row. When present for a CEP it is
// authoritative and overrides the fallback rule.
type ViabilityRecord struct {
	CEP       string    `json:"cep"`
	Viable    bool      `json:"viable"`
	Address   *Address  `json:"address,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
