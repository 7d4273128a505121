package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/SteamVC/steamvc-relay/internal/models"
)

// MemoryRoomRepo はプロセス内だけで完結するRoomRepoの実装です
// ローカル開発とテストで使用します
type MemoryRoomRepo struct {
	mu    sync.RWMutex
	rooms map[string]models.Room
}

func NewMemoryRoomRepo() *MemoryRoomRepo {
	return &MemoryRoomRepo{rooms: make(map[string]models.Room)}
}

func (r *MemoryRoomRepo) CreateRoom(ctx context.Context, room models.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room.RoomId]; !ok {
		r.rooms[room.RoomId] = room
	}
	return nil
}

func (r *MemoryRoomRepo) GetRoom(ctx context.Context, roomId string) (models.Room, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Room{}, false, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomId]
	return room, ok, nil
}

func (r *MemoryRoomRepo) ExistsRoom(ctx context.Context, roomId string) (bool, error) {
	_, ok, err := r.GetRoom(ctx, roomId)
	return ok, err
}

func (r *MemoryRoomRepo) ListRooms(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
