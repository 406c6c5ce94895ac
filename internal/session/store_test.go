package session

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier-dashboard/internal/domain"
	"courier-dashboard/internal/kv"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var courierJD = domain.SessionUser{
	LoginID:     "john.doe",
	DisplayName: "John Doe",
	Role:        domain.RoleCourier,
	CourierID:   "JD",
}

func newTestStore(t *testing.T) (*Store, *kv.MemoryStore, *fakeClock) {
	t.Helper()
	mem := kv.NewMemoryStore()
	clock := &fakeClock{t: time.Date(2025, 10, 16, 9, 0, 0, 0, time.UTC)}
	return NewStore(mem, WithClock(clock.Now)), mem, clock
}

func TestLoadReturnsSavedUserBeforeExpiry(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()
	expiresAt := clock.Now().Add(8 * time.Hour)

	require.NoError(t, store.Save(ctx, "s1", courierJD, expiresAt))

	clock.Advance(8*time.Hour - time.Millisecond)
	sess, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)
	assert.Equal(t, courierJD, sess.User)
	assert.Equal(t, expiresAt.UnixMilli(), sess.ExpiresAt.UnixMilli())
}

func TestLoadAtExpiryClearsBothEntries(t *testing.T) {
	store, mem, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", courierJD, clock.Now().Add(time.Hour)))
	require.Equal(t, 2, mem.Len())

	clock.Advance(time.Hour)
	_, err := store.Load(ctx, "s1")
	require.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, 0, mem.Len())

	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLoadWithMissingEntry(t *testing.T) {
	store, mem, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", courierJD, clock.Now().Add(time.Hour)))
	require.NoError(t, mem.Delete(ctx, DefaultKeyPrefix+"s1"+expirySuffix))

	_, err := store.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = store.Load(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = store.Load(ctx, "")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLoadDiscardsMalformedEntries(t *testing.T) {
	store, mem, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, DefaultKeyPrefix+"bad-expiry"+userSuffix, `{"loginId":"admin"}`, 0))
	require.NoError(t, mem.Set(ctx, DefaultKeyPrefix+"bad-expiry"+expirySuffix, "tomorrow", 0))
	_, err := store.Load(ctx, "bad-expiry")
	assert.ErrorIs(t, err, ErrNoSession)

	future := clock.Now().Add(time.Hour).UnixMilli()
	require.NoError(t, mem.Set(ctx, DefaultKeyPrefix+"bad-user"+userSuffix, "Administrator", 0))
	require.NoError(t, mem.Set(ctx, DefaultKeyPrefix+"bad-user"+expirySuffix, strconv.FormatInt(future, 10), 0))
	_, err = store.Load(ctx, "bad-user")
	assert.ErrorIs(t, err, ErrNoSession)

	assert.Equal(t, 0, mem.Len())
}

func TestSaveOverwritesPreviousSession(t *testing.T) {
	store, _, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", courierJD, clock.Now().Add(time.Minute)))
	admin := domain.SessionUser{LoginID: "admin", DisplayName: "Administrator", Role: domain.RoleAdmin}
	require.NoError(t, store.Save(ctx, "s1", admin, clock.Now().Add(2*time.Hour)))

	clock.Advance(time.Hour)
	sess, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, admin, sess.User)
}

func TestClear(t *testing.T) {
	store, mem, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", courierJD, clock.Now().Add(time.Hour)))
	require.NoError(t, store.Clear(ctx, "s1"))
	assert.Equal(t, 0, mem.Len())

	_, err := store.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrNoSession)

	assert.NoError(t, store.Clear(ctx, "s1"))
}

func TestUserMarkerIsStructured(t *testing.T) {
	store, mem, clock := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", courierJD, clock.Now().Add(time.Hour)))
	raw, err := mem.Get(ctx, DefaultKeyPrefix+"s1"+userSuffix)
	require.NoError(t, err)
	assert.JSONEq(t, `{"loginId":"john.doe","displayName":"John Doe","role":"courier","courierId":"JD"}`, raw)
}

type ttlRecorder struct {
	*kv.MemoryStore
	ttls map[string]time.Duration
}

func (r *ttlRecorder) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	r.ttls[key] = ttl
	return r.MemoryStore.Set(ctx, key, value, ttl)
}

func TestSaveNeverWritesWithoutTTL(t *testing.T) {
	rec := &ttlRecorder{MemoryStore: kv.NewMemoryStore(), ttls: map[string]time.Duration{}}
	clock := &fakeClock{t: time.Date(2025, 10, 16, 9, 0, 0, 0, time.UTC)}
	store := NewStore(rec, WithClock(clock.Now))
	ctx := context.Background()

	for id, expiresAt := range map[string]time.Time{
		"now":  clock.Now(),
		"past": clock.Now().Add(-time.Hour),
		"live": clock.Now().Add(time.Hour),
	} {
		require.NoError(t, store.Save(ctx, id, courierJD, expiresAt))
		for _, key := range []string{DefaultKeyPrefix + id + userSuffix, DefaultKeyPrefix + id + expirySuffix} {
			assert.Positive(t, rec.ttls[key], key)
		}
	}
	assert.Equal(t, time.Hour, rec.ttls[DefaultKeyPrefix+"live"+userSuffix])

	_, err := store.Load(ctx, "past")
	assert.ErrorIs(t, err, ErrNoSession)
}
