package models

import (
	"time"

	"biogate/pkg/domain"
	dErrors "biogate/pkg/domain-errors"
	"biogate/pkg/platform/round"
)

// Status is the template lifecycle state. Transitions are monotonic except
// active<->inactive, which toggles when a different template is promoted to
// primary. Disabled and expired templates never authenticate but the record
// persists until explicit deletion.
type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDisabled Status = "disabled"
	StatusExpired  Status = "expired"
)

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusInactive, StatusDisabled, StatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether the status ends the template's authentication life.
func (s Status) IsTerminal() bool {
	return s == StatusDisabled || s == StatusExpired
}

// String returns the string representation.
func (s Status) String() string {
	return string(s)
}

// CanTransition reports whether moving from s to next respects the lifecycle.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusActive || next == StatusDisabled
	case StatusActive:
		return next == StatusInactive || next == StatusDisabled || next == StatusExpired
	case StatusInactive:
		return next == StatusActive || next == StatusDisabled || next == StatusExpired
	default:
		return false
	}
}

// QualityGrade is the discretized bucket derived from a continuous quality
// score.
type QualityGrade string

const (
	GradeExcellent    QualityGrade = "excellent"
	GradeGood         QualityGrade = "good"
	GradeFair         QualityGrade = "fair"
	GradePoor         QualityGrade = "poor"
	GradeUnacceptable QualityGrade = "unacceptable"
)

// gradeThresholds is ordered highest first; Grade returns the first grade
// whose threshold the score satisfies, so ties go to the higher grade.
var gradeThresholds = []struct {
	grade     QualityGrade
	threshold float64
}{
	{GradeExcellent, 0.95},
	{GradeGood, 0.80},
	{GradeFair, 0.65},
	{GradePoor, 0.50},
}

// Grade maps a quality score onto its grade. Total over [0,1]; anything
// below the poor threshold is unacceptable.
func Grade(score float64) QualityGrade {
	for _, g := range gradeThresholds {
		if score >= g.threshold {
			return g.grade
		}
	}
	return GradeUnacceptable
}

// String returns the string representation.
func (g QualityGrade) String() string {
	return string(g)
}

// Template is the stored reference representation for one subject/modality.
// The feature payload is opaque encrypted bytes; comparison happens in the
// Matcher capability, never here. Owned exclusively by the template service
// and mutated only through it.
type Template struct {
	ID               domain.TemplateID `json:"template_id"`
	SubjectID        domain.SubjectID  `json:"subject_id"`
	Modality         domain.Modality   `json:"modality"`
	FeaturePayload   []byte            `json:"-"`
	QualityScore     float64           `json:"quality_score"`
	QualityGrade     QualityGrade      `json:"quality_grade"`
	Status           Status            `json:"status"`
	AlgorithmVersion string            `json:"algorithm_version"`
	IsPrimary        bool              `json:"is_primary"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	ExpiresAt        time.Time         `json:"expires_at"`
	LastUsedAt       *time.Time        `json:"last_used_at,omitempty"`
	UsageCount       int               `json:"usage_count"`
	SuccessCount     int               `json:"success_count"`
	FailureCount     int               `json:"failure_count"`
	SuccessRate      float64           `json:"success_rate"`
	CaptureDeviceID  string            `json:"capture_device_id,omitempty"`
	CaptureMetadata  map[string]any    `json:"capture_metadata,omitempty"`
}

// NewTemplate creates an active template with domain invariant validation.
func NewTemplate(subjectID domain.SubjectID, modality domain.Modality, payload []byte, qualityScore float64, algorithmVersion string, ttl time.Duration) (*Template, error) {
	if subjectID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "subject_id cannot be empty")
	}
	if !modality.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "modality is missing or unsupported")
	}
	if len(payload) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "feature payload cannot be empty")
	}
	if algorithmVersion == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "algorithm_version cannot be empty")
	}
	if qualityScore < 0 || qualityScore > 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "quality_score must be within [0,1]")
	}

	now := time.Now()
	return &Template{
		ID:               domain.NewTemplateID(),
		SubjectID:        subjectID,
		Modality:         modality,
		FeaturePayload:   payload,
		QualityScore:     qualityScore,
		QualityGrade:     Grade(qualityScore),
		Status:           StatusActive,
		AlgorithmVersion: algorithmVersion,
		CreatedAt:        now,
		UpdatedAt:        now,
		ExpiresAt:        now.Add(ttl),
	}, nil
}

// IsExpired checks the template against the given instant.
func (t *Template) IsExpired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// CanAuthenticate reports whether the template may serve match attempts.
func (t *Template) CanAuthenticate() bool {
	return t.Status == StatusActive
}

// RecordUsage updates the usage counters and recomputes the success rate.
func (t *Template) RecordUsage(success bool, now time.Time) {
	t.UsageCount++
	if success {
		t.SuccessCount++
	} else {
		t.FailureCount++
	}
	t.SuccessRate = round.HalfUp4(float64(t.SuccessCount) / float64(t.UsageCount))
	t.LastUsedAt = &now
	t.UpdatedAt = now
}

// Clone returns a deep copy so store snapshots never alias live records.
func (t *Template) Clone() *Template {
	cp := *t
	cp.FeaturePayload = append([]byte(nil), t.FeaturePayload...)
	if t.LastUsedAt != nil {
		lu := *t.LastUsedAt
		cp.LastUsedAt = &lu
	}
	if t.CaptureMetadata != nil {
		cp.CaptureMetadata = make(map[string]any, len(t.CaptureMetadata))
		for k, v := range t.CaptureMetadata {
			cp.CaptureMetadata[k] = v
		}
	}
	return &cp
}

// Query filters template lookups. Zero-valued fields match everything;
// results are ordered by updated_at descending.
type Query struct {
	SubjectID    *domain.SubjectID `json:"subject_id,omitempty"`
	Modality     *domain.Modality  `json:"modality,omitempty"`
	Status       *Status           `json:"status,omitempty"`
	QualityGrade *QualityGrade     `json:"quality_grade,omitempty"`
	CreatedFrom  *time.Time        `json:"created_from,omitempty"`
	CreatedTo    *time.Time        `json:"created_to,omitempty"`
	PrimaryOnly  bool              `json:"primary_only,omitempty"`
}

// Matches evaluates the filter against one template.
func (q Query) Matches(t *Template) bool {
	if q.SubjectID != nil && *q.SubjectID != t.SubjectID {
		return false
	}
	if q.Modality != nil && *q.Modality != t.Modality {
		return false
	}
	if q.Status != nil && *q.Status != t.Status {
		return false
	}
	if q.QualityGrade != nil && *q.QualityGrade != t.QualityGrade {
		return false
	}
	if q.CreatedFrom != nil && t.CreatedAt.Before(*q.CreatedFrom) {
		return false
	}
	if q.CreatedTo != nil && t.CreatedAt.After(*q.CreatedTo) {
		return false
	}
	if q.PrimaryOnly && !t.IsPrimary {
		return false
	}
	return true
}

// Statistics aggregates store-wide counters for the reporting surface.
type Statistics struct {
	TotalTemplates       int                     `json:"total_templates"`
	ActiveTemplates      int                     `json:"active_templates"`
	ModalityDistribution map[domain.Modality]int `json:"modality_distribution"`
	GradeDistribution    map[QualityGrade]int    `json:"grade_distribution"`
	StatusDistribution   map[Status]int          `json:"status_distribution"`
	AverageUsageCount    float64                 `json:"average_usage_count"`
	AverageSuccessRate   float64                 `json:"average_success_rate"`
	OldestTemplate       *time.Time              `json:"oldest_template,omitempty"`
	NewestTemplate       *time.Time              `json:"newest_template,omitempty"`
}
