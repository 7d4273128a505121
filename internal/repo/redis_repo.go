package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/SteamVC/steamvc-relay/internal/models"
	"github.com/redis/go-redis/v9"
)

// roomsIndexKey はルームキーと衝突しないよう別の名前空間に置く
const roomsIndexKey = "rooms-index"

type RedisRoomRepo struct{ rdb redis.UniversalClient }

func NewRedisRoomRepo(rdb redis.UniversalClient) *RedisRoomRepo {
	return &RedisRoomRepo{rdb: rdb}
}

func roomKey(id string) string {
	return fmt.Sprintf("rooms:%s", id)
}

func (rr *RedisRoomRepo) CreateRoom(ctx context.Context, room models.Room) error {
	b, err := json.Marshal(room)
	if err != nil {
		return err
	}
	// 既存のレコードは上書きしない（作成日時を保つ）
	pipe := rr.rdb.TxPipeline()
	pipe.SetNX(ctx, roomKey(room.RoomId), b, 0)
	pipe.SAdd(ctx, roomsIndexKey, room.RoomId)
	_, err = pipe.Exec(ctx)
	return err
}

func (rr *RedisRoomRepo) GetRoom(ctx context.Context, roomId string) (models.Room, bool, error) {
	val, err := rr.rdb.Get(ctx, roomKey(roomId)).Bytes()
	if err == redis.Nil { // データがない
		return models.Room{}, false, nil
	}
	if err != nil {
		return models.Room{}, false, err
	}
	var r models.Room
	if err := json.Unmarshal(val, &r); err != nil {
		return models.Room{}, false, err
	}
	return r, true, nil
}

func (rr *RedisRoomRepo) ExistsRoom(ctx context.Context, roomId string) (bool, error) {
	n, err := rr.rdb.Exists(ctx, roomKey(roomId)).Result()
	return n == 1, err
}

func (rr *RedisRoomRepo) ListRooms(ctx context.Context) ([]string, error) {
	ids, err := rr.rdb.SMembers(ctx, roomsIndexKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}
