package domain

import "time"

// CooldownCategory selects the base rest duration for a credential.
type CooldownCategory string

const (
	CooldownRateLimit  CooldownCategory = "rate-limit"
	CooldownFailure    CooldownCategory = "failure"
	CooldownValidation CooldownCategory = "validation"
	CooldownManual     CooldownCategory = "manual"
)

// CooldownRecord tracks the rest state of a single credential.
type CooldownRecord struct {
	CredentialID        string           `json:"credential_id"`
	Category            CooldownCategory `json:"category"`
	ConsecutiveFailures int              `json:"consecutive_failures"`
	CooldownUntil       time.Time        `json:"cooldown_until,omitempty"` // zero = none
	UpdatedAt           time.Time        `json:"updated_at"`
}
