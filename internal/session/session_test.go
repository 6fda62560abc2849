package session

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "diabetes-risk/internal/common/errors"
	"diabetes-risk/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSlot() Slot {
	profile := models.DefaultProfile()
	profile.Smoker = true
	return Slot{
		Profile: profile,
		Assessment: &models.RiskAssessment{
			ID:              uuid.New(),
			Probability:     32.5,
			Tier:            models.TierMedium,
			Recommendations: []string{"walk"},
			GeneratedAt:     time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			SourceProfile:   profile,
			ModelSource:     "placeholder",
			Placeholder:     true,
		},
		UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	got, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	slot := sampleSlot()
	require.NoError(t, store.Put(ctx, "a", slot))

	got, err = store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, slot, *got)

	replacement := Slot{Profile: models.DefaultProfile()}
	require.NoError(t, store.Put(ctx, "a", replacement))
	got, err = store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got.Assessment, "a new write replaces the whole slot")

	require.NoError(t, store.Delete(ctx, "a"))
	got, err = store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "a", sampleSlot()))
	now = now.Add(2 * time.Minute)

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_PutSweepsExpiredSlots(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }

	for i := 0; i < 10000; i++ {
		require.NoError(t, store.Put(ctx, NewID(), Slot{Profile: models.DefaultProfile()}))
	}
	assert.Equal(t, 10000, store.Len())

	now = now.Add(24 * time.Hour)
	require.NoError(t, store.Put(ctx, "fresh", sampleSlot()))
	assert.Equal(t, 1, store.Len(), "expired slots are dropped without being read")

	got, err := store.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestMemoryStore_SweepKeepsLiveSlots(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "old", sampleSlot()))
	now = now.Add(50 * time.Second)
	require.NoError(t, store.Put(ctx, "recent", sampleSlot()))
	now = now.Add(20 * time.Second)
	require.NoError(t, store.Put(ctx, "new", sampleSlot()))

	assert.Equal(t, 2, store.Len())
	got, err := store.Get(ctx, "recent")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestMemoryStore_ExpiredReadKeepsRefreshedSlot(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute)

	reads := 0
	store.now = func() time.Time {
		reads++
		// A Put refreshes the slot after the unlocked read.
		if reads == 1 {
			store.slots["a"] = memoryEntry{slot: sampleSlot(), expiresAt: now.Add(time.Minute)}
		}
		return now
	}

	store.slots["a"] = memoryEntry{slot: sampleSlot(), expiresAt: now.Add(-time.Second)}

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, store.Len(), "a slot written during the read survives")
}

func TestMemoryStore_SessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour)

	first := sampleSlot()
	second := Slot{Profile: models.DefaultProfile()}
	require.NoError(t, store.Put(ctx, "one", first))
	require.NoError(t, store.Put(ctx, "two", second))

	got, err := store.Get(ctx, "one")
	require.NoError(t, err)
	assert.NotNil(t, got.Assessment)

	got, err = store.Get(ctx, "two")
	require.NoError(t, err)
	assert.Nil(t, got.Assessment)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStore(client, "test:", 30*time.Minute)
	slot := sampleSlot()

	require.NoError(t, store.Put(ctx, "abc", slot))
	assert.True(t, mr.Exists("test:abc"))
	assert.Equal(t, 30*time.Minute, mr.TTL("test:abc"))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, slot.Profile, got.Profile)
	assert.Equal(t, slot.Assessment.ID, got.Assessment.ID)
	assert.Equal(t, slot.Assessment.Tier, got.Assessment.Tier)
	assert.True(t, slot.Assessment.GeneratedAt.Equal(got.Assessment.GeneratedAt))

	mr.FastForward(31 * time.Minute)
	got, err = store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_Errors(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "test:", time.Minute)

	mock.ExpectGet("test:missing").RedisNil()
	got, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	mock.ExpectGet("test:down").SetErr(errors.New("connection refused"))
	_, err = store.Get(ctx, "down")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionStoreFailed))

	mock.ExpectGet("test:garbled").SetVal("{not json")
	_, err = store.Get(ctx, "garbled")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionStoreFailed))

	mock.ExpectDel("test:gone").SetErr(errors.New("connection refused"))
	err = store.Delete(ctx, "gone")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionStoreFailed))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIDs(t *testing.T) {
	id := NewID()
	assert.True(t, ValidID(id))
	assert.NotEqual(t, id, NewID())
	assert.False(t, ValidID("../etc/passwd"))
	assert.False(t, ValidID(""))
}
