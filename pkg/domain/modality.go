package domain

import dErrors "biogate/pkg/domain-errors"

// Modality is a biometric factor type. Invariant: the value must be one of
// the supported modalities.
//
// Usage: construct via ParseModality at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type Modality string

// Supported biometric modalities.
const (
	ModalityFace        Modality = "face"
	ModalityFingerprint Modality = "fingerprint"
	ModalityIris        Modality = "iris"
	ModalityPalmprint   Modality = "palmprint"
	ModalityVoice       Modality = "voice"
	ModalityFace3D      Modality = "face_3d"
)

// validModalities is the single source of truth for supported modalities.
var validModalities = map[Modality]bool{
	ModalityFace:        true,
	ModalityFingerprint: true,
	ModalityIris:        true,
	ModalityPalmprint:   true,
	ModalityVoice:       true,
	ModalityFace3D:      true,
}

// ParseModality constructs a Modality from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseModality(s string) (Modality, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "modality cannot be empty")
	}
	m := Modality(s)
	if !m.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid modality: %s", s)
	}
	return m, nil
}

// IsValid checks if the modality is one of the supported enum values.
func (m Modality) IsValid() bool {
	return validModalities[m]
}

// String returns the string representation.
func (m Modality) String() string {
	return string(m)
}

// AllModalities returns every supported modality, in a stable order.
func AllModalities() []Modality {
	return []Modality{
		ModalityFace,
		ModalityFingerprint,
		ModalityIris,
		ModalityPalmprint,
		ModalityVoice,
		ModalityFace3D,
	}
}
