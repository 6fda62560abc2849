// Package history persists produced assessments in PostgreSQL and mirrors
// them into an Elasticsearch index for analytics.
package history

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"diabetes-risk/internal/models"

	"github.com/google/uuid"
)

// Repository is the durable assessment log. Every row carries an owner key
// and reads only see rows with the caller's key. An empty owner reads
// nothing.
type Repository interface {
	Save(ctx context.Context, owner string, a *models.RiskAssessment) error
	Get(ctx context.Context, owner string, id uuid.UUID) (*models.RiskAssessment, error)
	List(ctx context.Context, owner string, limit int) ([]*models.RiskAssessment, error)
}

// OwnerKey derives the stored owner key from a session id so raw session
// ids never reach the database. An empty subject has no owner.
func OwnerKey(subject string) string {
	if subject == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(subject))
	return hex.EncodeToString(sum[:])
}
