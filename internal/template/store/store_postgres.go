package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"biogate/internal/template/models"
	"biogate/pkg/domain"
	"biogate/pkg/platform/sentinel"
)

// PostgresRepository persists templates in PostgreSQL via database/sql and
// lib/pq. Schema lives in Schema; the service layer owns all lifecycle rules.
type PostgresRepository struct {
	db *sql.DB
}

// Schema is the DDL for the template table. Applied by deployments and the
// integration tests; kept here so the store and its schema evolve together.
const Schema = `
CREATE TABLE IF NOT EXISTS biometric_templates (
	template_id       UUID PRIMARY KEY,
	subject_id        UUID NOT NULL,
	modality          TEXT NOT NULL,
	feature_payload   BYTEA NOT NULL,
	quality_score     DOUBLE PRECISION NOT NULL,
	quality_grade     TEXT NOT NULL,
	status            TEXT NOT NULL,
	algorithm_version TEXT NOT NULL,
	is_primary        BOOLEAN NOT NULL DEFAULT FALSE,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL,
	expires_at        TIMESTAMPTZ NOT NULL,
	last_used_at      TIMESTAMPTZ,
	usage_count       INTEGER NOT NULL DEFAULT 0,
	success_count     INTEGER NOT NULL DEFAULT 0,
	failure_count     INTEGER NOT NULL DEFAULT 0,
	success_rate      DOUBLE PRECISION NOT NULL DEFAULT 0,
	capture_device_id TEXT NOT NULL DEFAULT '',
	capture_metadata  JSONB
);
CREATE INDEX IF NOT EXISTS idx_biometric_templates_subject_modality
	ON biometric_templates (subject_id, modality);
CREATE INDEX IF NOT EXISTS idx_biometric_templates_updated_at
	ON biometric_templates (updated_at DESC);
`

// NewPostgres constructs a PostgreSQL-backed template repository.
func NewPostgres(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate applies the template schema.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate biometric_templates: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Save(ctx context.Context, t *models.Template) error {
	metadata, err := marshalMetadata(t.CaptureMetadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO biometric_templates (
			template_id, subject_id, modality, feature_payload, quality_score,
			quality_grade, status, algorithm_version, is_primary, created_at,
			updated_at, expires_at, last_used_at, usage_count, success_count,
			failure_count, success_rate, capture_device_id, capture_metadata
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (template_id) DO UPDATE SET
			status = EXCLUDED.status,
			is_primary = EXCLUDED.is_primary,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at,
			last_used_at = EXCLUDED.last_used_at,
			usage_count = EXCLUDED.usage_count,
			success_count = EXCLUDED.success_count,
			failure_count = EXCLUDED.failure_count,
			success_rate = EXCLUDED.success_rate
	`
	_, err = r.db.ExecContext(ctx, query,
		uuid.UUID(t.ID), uuid.UUID(t.SubjectID), t.Modality.String(), t.FeaturePayload,
		t.QualityScore, t.QualityGrade.String(), t.Status.String(), t.AlgorithmVersion,
		t.IsPrimary, t.CreatedAt, t.UpdatedAt, t.ExpiresAt, nullTime(t.LastUsedAt),
		t.UsageCount, t.SuccessCount, t.FailureCount, t.SuccessRate,
		t.CaptureDeviceID, metadata,
	)
	if err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Load(ctx context.Context, id domain.TemplateID) (*models.Template, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE template_id = $1`, uuid.UUID(id))
	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	return t, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id domain.TemplateID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM biometric_templates WHERE template_id = $1`, uuid.UUID(id))
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, query models.Query) ([]*models.Template, error) {
	sqlQuery := selectColumns + ` WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if query.SubjectID != nil {
		sqlQuery += ` AND subject_id = ` + arg(uuid.UUID(*query.SubjectID))
	}
	if query.Modality != nil {
		sqlQuery += ` AND modality = ` + arg(query.Modality.String())
	}
	if query.Status != nil {
		sqlQuery += ` AND status = ` + arg(query.Status.String())
	}
	if query.QualityGrade != nil {
		sqlQuery += ` AND quality_grade = ` + arg(query.QualityGrade.String())
	}
	if query.CreatedFrom != nil {
		sqlQuery += ` AND created_at >= ` + arg(*query.CreatedFrom)
	}
	if query.CreatedTo != nil {
		sqlQuery += ` AND created_at <= ` + arg(*query.CreatedTo)
	}
	if query.PrimaryOnly {
		sqlQuery += ` AND is_primary`
	}
	sqlQuery += ` ORDER BY updated_at DESC, template_id`

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("find templates: %w", err)
	}
	defer rows.Close()

	var out []*models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return out, nil
}

const selectColumns = `
	SELECT template_id, subject_id, modality, feature_payload, quality_score,
		quality_grade, status, algorithm_version, is_primary, created_at,
		updated_at, expires_at, last_used_at, usage_count, success_count,
		failure_count, success_rate, capture_device_id, capture_metadata
	FROM biometric_templates
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*models.Template, error) {
	var (
		t          models.Template
		templateID uuid.UUID
		subjectID  uuid.UUID
		modality   string
		grade      string
		status     string
		lastUsed   sql.NullTime
		metadata   []byte
	)
	err := row.Scan(&templateID, &subjectID, &modality, &t.FeaturePayload, &t.QualityScore,
		&grade, &status, &t.AlgorithmVersion, &t.IsPrimary, &t.CreatedAt,
		&t.UpdatedAt, &t.ExpiresAt, &lastUsed, &t.UsageCount, &t.SuccessCount,
		&t.FailureCount, &t.SuccessRate, &t.CaptureDeviceID, &metadata)
	if err != nil {
		return nil, err
	}

	t.ID = domain.TemplateID(templateID)
	t.SubjectID = domain.SubjectID(subjectID)
	t.Modality = domain.Modality(modality)
	t.QualityGrade = models.QualityGrade(grade)
	t.Status = models.Status(status)
	if lastUsed.Valid {
		lu := lastUsed.Time
		t.LastUsedAt = &lu
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.CaptureMetadata); err != nil {
			return nil, fmt.Errorf("decode capture metadata: %w", err)
		}
	}
	return &t, nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode capture metadata: %w", err)
	}
	return b, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
