// Package service はルームディレクトリのビジネスロジックを担当します
// ルームの作成・存在確認・一覧取得を提供し、バックエンドの障害を
// ErrDirectoryUnavailable にまとめて呼び出し元へ返します
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SteamVC/steamvc-relay/internal/idgen"
	"github.com/SteamVC/steamvc-relay/internal/lib/logger/sl"
	"github.com/SteamVC/steamvc-relay/internal/metrics"
	"github.com/SteamVC/steamvc-relay/internal/models"
	"github.com/SteamVC/steamvc-relay/internal/repo"
)

// maxRoomIDLength はクライアント指定のルームIDの最大バイト数
const maxRoomIDLength = 128

// RoomService はルームディレクトリのビジネスロジックを提供します
type RoomService struct {
	repo    repo.RoomRepo // データ永続化を担当するリポジトリ
	idg     IDGenerator   // ルームID生成器
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// IDGenerator はユニークなIDを生成するインターフェース
type IDGenerator interface {
	New() (string, error) // 新しいIDを生成
}

// roomIDGen はIDGeneratorの実装
type roomIDGen struct{}

// New は新しいルームIDを生成します
func (roomIDGen) New() (string, error) { return idgen.NewRoomID() }

// NewRoomIDGenerator は新しいRoomIDGeneratorを作成します
func NewRoomIDGenerator() IDGenerator {
	return roomIDGen{}
}

// NewRoomService は新しいRoomServiceを作成します
func NewRoomService(r repo.RoomRepo, idg IDGenerator, m *metrics.Metrics, log *slog.Logger) *RoomService {
	if log == nil {
		log = slog.Default()
	}
	if idg == nil {
		idg = NewRoomIDGenerator()
	}
	return &RoomService{repo: r, idg: idg, metrics: m, log: log, now: time.Now}
}

// NormalizeRoomID はルームIDの前後の空白を削除し、妥当性を検証します
func NormalizeRoomID(roomId string) (string, error) {
	id := strings.TrimSpace(roomId)
	if id == "" || len(id) > maxRoomIDLength {
		return "", ErrInvalidRoomID
	}
	return id, nil
}

// Create はルームをディレクトリに記録します
// 処理の流れ:
// 1. roomIdが空ならユニークなIDを生成（重複チェック付き、最大10回リトライ）
// 2. ルームを保存（既に存在する場合も成功扱い）
// 戻り値: 記録されたルームID、エラー
func (s *RoomService) Create(ctx context.Context, roomId string) (string, error) {
	const op = "service.room.create"
	log := s.log.With(slog.String("op", op))

	if strings.TrimSpace(roomId) == "" {
		id, err := s.generateID(ctx)
		if err != nil {
			return "", err
		}
		roomId = id
	}

	id, err := NormalizeRoomID(roomId)
	if err != nil {
		return "", err
	}

	room := models.Room{RoomId: id, CreatedAt: s.now().Unix()}
	if err := s.repo.CreateRoom(ctx, room); err != nil {
		return "", s.unavailable(log, "create", err)
	}
	log.Debug("room recorded", slog.String("room_id", id))
	return id, nil
}

// generateID はディレクトリに存在しないルームIDを生成します
func (s *RoomService) generateID(ctx context.Context) (string, error) {
	const maxRetries = 10 // ID生成の最大リトライ回数

	for i := 0; i < maxRetries; i++ {
		roomId, err := s.idg.New()
		if err != nil {
			return "", err
		}

		exists, err := s.repo.ExistsRoom(ctx, roomId)
		if err != nil {
			return "", s.unavailable(s.log.With(slog.String("op", "service.room.generateID")), "exists", err)
		}
		if !exists {
			return roomId, nil
		}
	}
	return "", ErrRoomIDGenerationFailed
}

// Exists はルームがディレクトリに記録されているかを返します
func (s *RoomService) Exists(ctx context.Context, roomId string) (bool, error) {
	id, err := NormalizeRoomID(roomId)
	if err != nil {
		return false, err
	}
	ok, err := s.repo.ExistsRoom(ctx, id)
	if err != nil {
		return false, s.unavailable(s.log.With(slog.String("op", "service.room.exists")), "exists", err)
	}
	return ok, nil
}

// Get は指定されたルームの記録を取得します
// 戻り値: ルーム情報、存在フラグ、エラー
func (s *RoomService) Get(ctx context.Context, roomId string) (models.Room, bool, error) {
	id, err := NormalizeRoomID(roomId)
	if err != nil {
		return models.Room{}, false, err
	}
	r, ok, err := s.repo.GetRoom(ctx, id)
	if err != nil {
		return models.Room{}, false, s.unavailable(s.log.With(slog.String("op", "service.room.get")), "get", err)
	}
	return r, ok, nil
}

// List はディレクトリに記録された全ルームIDを返します
func (s *RoomService) List(ctx context.Context) ([]string, error) {
	ids, err := s.repo.ListRooms(ctx)
	if err != nil {
		return nil, s.unavailable(s.log.With(slog.String("op", "service.room.list")), "list", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

func (s *RoomService) unavailable(log *slog.Logger, op string, err error) error {
	s.metrics.DirectoryError(op)
	log.Error("room directory failure", sl.Err(err))
	return fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
}
