package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestStore_SaveLoad(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	store := NewStore(rdb, time.Hour)
	ctx := context.Background()

	s := newTestSession(t)
	require.NoError(t, s.SetServices(consult, scan))
	s.SetProvider(Provider{ID: "doc-1", Name: "Ivanova", Category: "Therapist"})
	s.SetVenue(Venue{ID: "v-1", Name: "Clinic", Address: "Lenina 1"})
	s.SelectDate(oct19)
	require.NoError(t, s.SelectTime("09:45"))
	s.SetClient(Client{Name: "Anna", Surname: "Petrova", Birthday: "01.02.1990", Phone: "+79000000000", Email: "a@example.com"})
	require.NoError(t, s.SetRemindMinutes(30))

	require.NoError(t, store.Save(ctx, s))

	// One hash entry per field.
	assert.Equal(t, "2026-10-19", mr.HGet("widget:session:sess-1", "selected_date"))
	assert.Equal(t, "09:45", mr.HGet("widget:session:sess-1", "selected_time"))
	assert.Equal(t, "Anna", mr.HGet("widget:session:sess-1", "client_name"))
	assert.Equal(t, "30", mr.HGet("widget:session:sess-1", "remind_minutes"))
	assert.Equal(t, time.Hour, mr.TTL("widget:session:sess-1"))

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assertSameSnapshot(t, s.Snapshot(), loaded.Snapshot())
}

func TestStore_SaveClearsFields(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	store := NewStore(rdb, time.Hour)
	ctx := context.Background()

	s := newTestSession(t)
	require.NoError(t, s.SetService(consult))
	s.SelectDate(oct19)
	require.NoError(t, s.SelectTime("10:00"))
	require.NoError(t, store.Save(ctx, s))

	s.SelectDate(oct20)
	require.NoError(t, store.Save(ctx, s))

	assert.Equal(t, "", mr.HGet("widget:session:sess-1", "selected_time"))
	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	_, ok := loaded.SelectedTime()
	assert.False(t, ok)
	d, ok := loaded.SelectedDate()
	require.True(t, ok)
	assert.Equal(t, oct20, d)
}

func TestStore_LoadMissing(t *testing.T) {
	rdb, _ := setupTestRedis(t)
	store := NewStore(rdb, 0)

	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_LoadRefreshesTTLAndExpires(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	store := NewStore(rdb, 10*time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newTestSession(t)))
	mr.FastForward(9 * time.Minute)

	_, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, mr.TTL("widget:session:sess-1"))

	mr.FastForward(11 * time.Minute)
	_, err = store.Load(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_LoadCorrupt(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	store := NewStore(rdb, time.Hour)

	mr.HSet("widget:session:bad", "id", "bad", "services", "{not json")

	_, err := store.Load(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestStore_Delete(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	store := NewStore(rdb, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newTestSession(t)))
	require.NoError(t, store.Delete(ctx, "sess-1"))
	assert.False(t, mr.Exists("widget:session:sess-1"))

	assert.Error(t, store.Save(ctx, New("", time.Now())))
}
