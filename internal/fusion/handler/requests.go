package handler

import (
	"time"

	"biogate/internal/fusion/models"
	"biogate/pkg/domain"
)

// AuthenticateRequest is the wire shape for POST /authenticate. Timeouts
// travel as seconds; the domain request carries a time.Duration.
type AuthenticateRequest struct {
	SubjectID      *domain.SubjectID `json:"subject_id,omitempty"`
	Strategy       models.Strategy   `json:"strategy"`
	Captures       []domain.Capture  `json:"captures"`
	TimeoutSeconds float64           `json:"timeout_seconds,omitempty"`
	SecurityLevel  float64           `json:"security_level,omitempty"`
}

// Validate delegates to the domain request so wire and domain validation
// cannot drift.
func (r AuthenticateRequest) Validate() error {
	return r.Domain().Validate()
}

// Domain converts the wire request into the domain request.
func (r AuthenticateRequest) Domain() models.AuthenticationRequest {
	return models.AuthenticationRequest{
		SubjectID:     r.SubjectID,
		Strategy:      r.Strategy,
		Captures:      r.Captures,
		Timeout:       time.Duration(r.TimeoutSeconds * float64(time.Second)),
		SecurityLevel: r.SecurityLevel,
	}
}
