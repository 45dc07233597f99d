package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voltway/distctl/internal/storage"
)

func TestKVPersister_RoundTrip(t *testing.T) {
	kv := storage.NewMemory()
	p := NewKVPersister(kv)

	slice, err := p.Load()
	require.NoError(t, err)
	assert.Nil(t, slice)

	want := State{User: &Identity{ID: "1", Email: "a@b.com"}, IsAuthenticated: true}.Slice()
	require.NoError(t, p.Save(want))

	got, err := p.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, want.Equal(*got))

	require.NoError(t, p.Clear())
	got, err = p.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestKVPersister_Layout(t *testing.T) {
	kv := storage.NewMemory()
	p := NewKVPersister(kv)

	slice := State{PendingEmail: "a@b.com", IsMFARequired: true}.Slice()
	require.NoError(t, p.Save(slice))

	raw, err := kv.Get(PersistKey)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	assert.Equal(t, map[string]any{
		"user":               nil,
		"isAuthenticated":    false,
		"isMfaRequired":      true,
		"pendingEmail":       "a@b.com",
		"forcePasswordReset": false,
	}, doc)
}

func TestKVPersister_CorruptValue(t *testing.T) {
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(PersistKey, "{oops"))

	_, err := NewKVPersister(kv).Load()
	require.ErrorIs(t, err, ErrCorruptState)
}

// Persisting then rehydrating reproduces the durable fields and resets the
// transient ones regardless of their values before the save
func TestPersistRoundTripThroughCheckAuth(t *testing.T) {
	kv := storage.NewMemory()
	p := NewKVPersister(kv)

	before := State{User: &Identity{ID: "42", Name: "Ops"}, IsAuthenticated: true, IsLoading: true, Error: "stale"}
	require.NoError(t, p.Save(before.Slice()))

	after := NewStore(&fakeGateway{}, p).CheckAuth(context.Background())
	assert.Equal(t, before.User, after.User)
	assert.True(t, after.IsAuthenticated)
	assert.False(t, after.IsLoading)
	assert.Empty(t, after.Error)
}

func TestCheckAuth_PurgesCorruptKV(t *testing.T) {
	kv := storage.NewMemory()
	require.NoError(t, kv.Set(PersistKey, "not json"))

	st := NewStore(&fakeGateway{}, NewKVPersister(kv)).CheckAuth(context.Background())
	assert.Equal(t, State{}, st)

	_, err := kv.Get(PersistKey)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMessage(t *testing.T) {
	assert.Empty(t, Message(nil))
	assert.Equal(t, "No verification is in progress. Please sign in again.", Message(ErrNoPendingChallenge))
	assert.Equal(t, "Unexpected response from the server. Please try again.", Message(ErrInvalidServerResponse))
	assert.Equal(t, "boom", Message(errBoom))
}
