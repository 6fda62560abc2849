package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "diabetes-risk/internal/common/errors"
	"diabetes-risk/internal/common/logger"
	"diabetes-risk/internal/models"

	"github.com/google/uuid"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS risk_assessments (
	id              UUID PRIMARY KEY,
	probability     DOUBLE PRECISION NOT NULL,
	tier            TEXT NOT NULL,
	recommendations JSONB NOT NULL,
	profile         JSONB NOT NULL,
	model_source    TEXT NOT NULL,
	placeholder     BOOLEAN NOT NULL DEFAULT FALSE,
	generated_at    TIMESTAMPTZ NOT NULL,
	owner_key       TEXT NOT NULL DEFAULT ''
);
ALTER TABLE risk_assessments ADD COLUMN IF NOT EXISTS owner_key TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS risk_assessments_generated_at_idx ON risk_assessments (generated_at DESC);
CREATE INDEX IF NOT EXISTS risk_assessments_owner_idx ON risk_assessments (owner_key, generated_at DESC);`

const selectColumns = `id, probability, tier, recommendations, profile, model_source, placeholder, generated_at`

const insertColumns = selectColumns + `, owner_key`

type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "history_postgres"}),
	}
}

// EnsureSchema creates the table and index when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return apperrors.NewQueryExecutionFailedError("ensure_schema", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, owner string, a *models.RiskAssessment) error {
	recs, err := json.Marshal(a.Recommendations)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	profile, err := json.Marshal(a.SourceProfile)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO risk_assessments (`+insertColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID.String(), a.Probability, string(a.Tier), string(recs), string(profile),
		a.ModelSource, a.Placeholder, a.GeneratedAt.UTC(), owner,
	)
	if err != nil {
		s.logger.Error("failed to save assessment", map[string]interface{}{
			"assessmentId": a.ID.String(),
			"error":        err,
		})
		return apperrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// Get returns the assessment only when owner recorded it. Rows saved
// without an owner are never returned.
func (s *PostgresStore) Get(ctx context.Context, owner string, id uuid.UUID) (*models.RiskAssessment, error) {
	if owner == "" {
		return nil, apperrors.NewAssessmentNotFoundError(id.String())
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM risk_assessments
		WHERE id = $1 AND owner_key = $2`, id.String(), owner)

	a, err := scanAssessment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewAssessmentNotFoundError(id.String())
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get_assessment", err)
	}
	return a, nil
}

// List returns owner's assessments, newest first.
func (s *PostgresStore) List(ctx context.Context, owner string, limit int) ([]*models.RiskAssessment, error) {
	if limit <= 0 {
		limit = 20
	}
	if owner == "" {
		return []*models.RiskAssessment{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM risk_assessments
		WHERE owner_key = $1
		ORDER BY generated_at DESC
		LIMIT $2`, owner, limit)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_assessments", err)
	}
	defer rows.Close()

	out := make([]*models.RiskAssessment, 0, limit)
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("list_assessments", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_assessments", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAssessment(row scanner) (*models.RiskAssessment, error) {
	var (
		a       models.RiskAssessment
		id      string
		tier    string
		recs    []byte
		profile []byte
	)
	if err := row.Scan(&id, &a.Probability, &tier, &recs, &profile, &a.ModelSource, &a.Placeholder, &a.GeneratedAt); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("bad assessment id %q: %w", id, err)
	}
	a.ID = parsed
	a.Tier = models.Tier(tier)
	if err := json.Unmarshal(recs, &a.Recommendations); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	if err := json.Unmarshal(profile, &a.SourceProfile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &a, nil
}
