package repo

import (
	"context"
	"testing"

	"github.com/SteamVC/steamvc-relay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoomRepoCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRoomRepo()

	require.NoError(t, r.CreateRoom(ctx, models.Room{RoomId: "r1", CreatedAt: 100}))
	require.NoError(t, r.CreateRoom(ctx, models.Room{RoomId: "r1", CreatedAt: 200}))

	room, ok, err := r.GetRoom(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(100), room.CreatedAt, "second create must not overwrite the record")

	ids, err := r.ListRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, ids)
}

func TestMemoryRoomRepoExistsAndList(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRoomRepo()

	ok, err := r.ExistsRoom(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, r.CreateRoom(ctx, models.Room{RoomId: id}))
	}
	ok, err = r.ExistsRoom(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	ids, err := r.ListRooms(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestMemoryRoomRepoHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewMemoryRoomRepo()
	assert.ErrorIs(t, r.CreateRoom(ctx, models.Room{RoomId: "r1"}), context.Canceled)
	_, err := r.ListRooms(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
