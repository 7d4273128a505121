package handlers

import (
	"fmt"

	"github.com/SteamVC/steamvc-relay/internal/service"
)

// validateRoomId はルームIDのバリデーションを行います
// 空、または長すぎる場合はエラーを返します
func validateRoomId(roomId string) error {
	if _, err := service.NormalizeRoomID(roomId); err != nil {
		return fmt.Errorf("roomId required (1-128 bytes)")
	}
	return nil
}
