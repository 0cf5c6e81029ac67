package models

import (
	"biogate/pkg/domain"
	dErrors "biogate/pkg/domain-errors"
)

// RegistrationRequest carries everything needed to admit a new template.
// Quality is assessed by the QualityAssessor capability, not declared here.
type RegistrationRequest struct {
	SubjectID        domain.SubjectID `json:"subject_id"`
	Capture          domain.Capture   `json:"capture"`
	AlgorithmVersion string           `json:"algorithm_version"`
	SetAsPrimary     bool             `json:"set_as_primary"`
	CaptureDeviceID  string           `json:"capture_device_id,omitempty"`
	CaptureMetadata  map[string]any   `json:"capture_metadata,omitempty"`
}

// Validate rejects structurally broken registration requests before any
// capability or store work happens.
func (r RegistrationRequest) Validate() error {
	if r.SubjectID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "subject_id cannot be empty")
	}
	if err := r.Capture.Validate(); err != nil {
		return err
	}
	if r.AlgorithmVersion == "" {
		return dErrors.New(dErrors.CodeValidation, "algorithm_version cannot be empty")
	}
	return nil
}

// RegistrationResult reports the outcome of a registration attempt. Rejection
// reasons surface through the error path; warnings here are advisory only.
type RegistrationResult struct {
	TemplateID   domain.TemplateID `json:"template_id"`
	QualityScore float64           `json:"quality_score"`
	QualityGrade QualityGrade      `json:"quality_grade"`
	Warnings     []string          `json:"warnings,omitempty"`
}
