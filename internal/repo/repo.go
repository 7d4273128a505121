package repo

import (
	"context"

	"github.com/SteamVC/steamvc-relay/internal/models"
)

// RoomRepo はルームディレクトリ（ルームIDの存在記録）の永続化を担当します
// CreateRoom は冪等で、同じIDを二度記録してもエラーになりません
type RoomRepo interface {
	CreateRoom(ctx context.Context, room models.Room) error
	GetRoom(ctx context.Context, roomId string) (models.Room, bool, error)
	ExistsRoom(ctx context.Context, roomId string) (bool, error)
	ListRooms(ctx context.Context) ([]string, error)
}
