// Package session keeps the per-visitor slot holding the last submitted
// profile and the assessment it produced. Writes replace the whole slot.
package session

import (
	"context"
	"time"

	"diabetes-risk/internal/common/config"
	"diabetes-risk/internal/common/database"
	"diabetes-risk/internal/common/logger"
	"diabetes-risk/internal/models"

	"github.com/google/uuid"
)

// Slot is the current profile/assessment pair. Assessment is nil when the
// last submission could not be scored.
type Slot struct {
	Profile    models.UserProfile     `json:"profile"`
	Assessment *models.RiskAssessment `json:"assessment,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// Store persists slots by session id. Get returns (nil, nil) for an unknown
// or expired id.
type Store interface {
	Get(ctx context.Context, id string) (*Slot, error)
	Put(ctx context.Context, id string, slot Slot) error
	Delete(ctx context.Context, id string) error
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like one NewID produced.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// NewStore builds the configured backend. The returned close func releases
// backend connections.
func NewStore(ctx context.Context, cfg *config.Config, log logger.Logger) (Store, func() error, error) {
	ttl := time.Duration(cfg.Session.TTL) * time.Second

	if cfg.Session.Backend != "redis" {
		log.Info("using in-memory session store", map[string]interface{}{"ttl": ttl.String()})
		return NewMemoryStore(ttl), func() error { return nil }, nil
	}

	client, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, err
	}
	log.Info("using redis session store", map[string]interface{}{
		"address": cfg.Database.Redis.Address,
		"ttl":     ttl.String(),
	})
	return NewRedisStore(client.Client, cfg.Session.KeyPrefix, ttl), client.Close, nil
}
