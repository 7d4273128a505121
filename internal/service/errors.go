package service

import "errors"

// カスタムエラー定義
var (
	ErrRoomNotFound           = errors.New("room not found")
	ErrAlreadyInAnotherRoom   = errors.New("already in another room")
	ErrDeliveryBackpressure   = errors.New("outbound buffer full")
	ErrDirectoryUnavailable   = errors.New("room directory unavailable")
	ErrInvalidRoomID          = errors.New("invalid room id")
	ErrInvalidEvent           = errors.New("invalid event")
	ErrSessionClosed          = errors.New("session closed")
	ErrRoomIDGenerationFailed = errors.New("failed to generate unique room ID after multiple attempts")
)
