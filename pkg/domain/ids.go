package domain

import (
	"github.com/google/uuid"

	dErrors "biogate/pkg/domain-errors"
)

// Typed IDs prevent cross-type assignment at compile time: a SubjectID can
// never be passed where a TemplateID is expected. Construct via the Parse
// functions at trust boundaries; IDs must be valid, non-nil UUIDs.

// TemplateID identifies a stored biometric template.
type TemplateID uuid.UUID

// SubjectID identifies the person a template or authentication refers to.
type SubjectID uuid.UUID

// NewTemplateID returns a freshly generated template ID.
func NewTemplateID() TemplateID {
	return TemplateID(uuid.New())
}

// NewSubjectID returns a freshly generated subject ID.
func NewSubjectID() SubjectID {
	return SubjectID(uuid.New())
}

// ParseTemplateID validates external input as a template ID.
func ParseTemplateID(s string) (TemplateID, error) {
	u, err := parseUUID(s, "template_id")
	return TemplateID(u), err
}

// ParseSubjectID validates external input as a subject ID.
func ParseSubjectID(s string) (SubjectID, error) {
	u, err := parseUUID(s, "subject_id")
	return SubjectID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", field)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil UUID", field)
	}
	return u, nil
}

func (id TemplateID) String() string { return uuid.UUID(id).String() }
func (id TemplateID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id SubjectID) String() string { return uuid.UUID(id).String() }
func (id SubjectID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// IDs travel as canonical UUID strings in JSON and text contexts.

func (id TemplateID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *TemplateID) UnmarshalText(b []byte) error {
	parsed, err := ParseTemplateID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id SubjectID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *SubjectID) UnmarshalText(b []byte) error {
	parsed, err := ParseSubjectID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
