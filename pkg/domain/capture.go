package domain

import dErrors "biogate/pkg/domain-errors"

// Capture is one raw biometric sample as submitted by a device. The payload
// is opaque to this core; only the capability layer interprets it.
type Capture struct {
	Modality Modality       `json:"modality"`
	Data     []byte         `json:"data"`
	Format   string         `json:"format,omitempty"`
	Quality  float64        `json:"quality,omitempty"` // declared capture quality, 0 when unknown
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Validate enforces the structural invariants every capture must satisfy
// before any capability sees it.
func (c Capture) Validate() error {
	if !c.Modality.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "capture modality is missing or unsupported")
	}
	if len(c.Data) == 0 {
		return dErrors.New(dErrors.CodeValidation, "capture data cannot be empty")
	}
	if c.Quality < 0 || c.Quality > 1 {
		return dErrors.New(dErrors.CodeValidation, "capture quality must be within [0,1]")
	}
	return nil
}
