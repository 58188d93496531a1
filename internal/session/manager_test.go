package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(echo(), Options{})
	a := m.Create()
	b := m.Create()
	assert.NotEqual(t, a.ID(), b.ID())
	_, err := uuid.Parse(a.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	got, err := m.Get(a.ID())
	require.NoError(t, err)
	assert.Same(t, a, got)

	require.NoError(t, m.Submit(a.ID(), "hello"))
	snap := waitIdle(t, a)
	assert.Len(t, snap.Turns, 2)
	assert.Empty(t, b.Snapshot().Turns)

	require.NoError(t, m.Close(a.ID()))
	assert.Equal(t, StateClosed, a.Snapshot().State)
	assert.ErrorIs(t, m.Close(a.ID()), domain.ErrSessionNotFound)
	assert.ErrorIs(t, m.Submit(a.ID(), "again"), domain.ErrSessionNotFound)

	m.CloseAll()
	assert.Zero(t, m.Len())
	assert.Equal(t, StateClosed, b.Snapshot().State)
}

func TestManager_GetUnknown(t *testing.T) {
	m := NewManager(echo(), Options{})
	_, err := m.Get("nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
