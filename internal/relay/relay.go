// Package relay はルーム内のシグナリングメッセージ中継を担当します
//
// Registry がプロセス内の参加状態を保持し、Relay が受信イベントを検証して
// Registry の操作に変換します。各接続には Session が1つ対応し、
// 送信はすべて Session の送信キューを経由します
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SteamVC/steamvc-relay/internal/lib/logger/sl"
	"github.com/SteamVC/steamvc-relay/internal/service"
)

// Relay は接続ごとの受信イベントを処理します
type Relay struct {
	dir Directory
	reg *Registry
	log *slog.Logger
}

// New は新しいRelayを作成します
func New(dir Directory, reg *Registry, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{dir: dir, reg: reg, log: log}
}

// Registry は Relay が使用するレジストリを返します
func (rl *Relay) Registry() *Registry { return rl.reg }

// Connect は新しい接続を登録し、welcome を送ります
func (rl *Relay) Connect(s *Session) {
	rl.reg.Connect(s)
	rl.reg.Reply(s, Event{Type: TypeWelcome, Payload: WelcomePayload{ParticipantId: s.ID()}})
}

// Handle は1つの受信フレームを処理します
// 失敗した場合は呼び出し元にだけ error イベントを返します
func (rl *Relay) Handle(ctx context.Context, s *Session, data []byte) {
	const op = "relay.handle"

	err := rl.dispatch(ctx, s, data)
	if err == nil {
		return
	}

	log := rl.log.With(
		slog.String("op", op),
		slog.String("participant_id", s.ID()),
	)
	switch {
	case errors.Is(err, service.ErrSessionClosed):
		return
	case errors.Is(err, service.ErrInvalidEvent),
		errors.Is(err, service.ErrRoomNotFound),
		errors.Is(err, service.ErrAlreadyInAnotherRoom):
		log.Debug("event rejected", sl.Err(err))
	default:
		log.Error("failed to handle event", sl.Err(err))
	}
	rl.reg.Reply(s, errorEvent(err))
}

func (rl *Relay) dispatch(ctx context.Context, s *Session, data []byte) error {
	env, err := DecodeEnvelope(data)
	if err != nil {
		return err
	}

	switch strings.TrimSpace(env.Type) {
	case TypeCreateRoom:
		var p CreateRoomPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return err
		}
		if err := p.validate(); err != nil {
			return err
		}
		_, err := rl.OnCreateRoom(ctx, s, p.RoomId, p.PeerId)
		return err
	case TypeJoinRoom:
		var p JoinRoomPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return err
		}
		if err := p.validate(); err != nil {
			return err
		}
		return rl.OnJoinRoom(ctx, s, p.RoomId, p.PeerId)
	case TypeLeaveRoom:
		var p LeaveRoomPayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return err
		}
		if err := p.validate(); err != nil {
			return err
		}
		return rl.OnLeaveRoom(ctx, s, p.RoomId, p.PeerId)
	case TypeMessage:
		var p MessagePayload
		if err := decodePayload(env.Payload, &p); err != nil {
			return err
		}
		if err := p.validate(); err != nil {
			return err
		}
		return rl.OnMessage(ctx, s, p.Sender, p.Body, p.RoomId)
	case TypePing:
		rl.reg.Reply(s, Event{Type: TypePong})
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", service.ErrInvalidEvent, env.Type)
	}
}

// OnCreateRoom はルームを作成して作成者を参加させます
// roomId が空の場合はUUIDを生成します
func (rl *Relay) OnCreateRoom(ctx context.Context, s *Session, roomId, peerId string) (string, error) {
	id, err := rl.reg.CreateAndJoin(ctx, roomId, s.ID(), peerId)
	if err != nil {
		return "", err
	}
	rl.log.Info("room created",
		slog.String("op", "relay.create"),
		slog.String("room_id", id),
		slog.String("participant_id", s.ID()),
	)
	return id, nil
}

// OnJoinRoom はルームに参加させます
// ディレクトリにルームが無い場合は状態を変えずに ErrRoomNotFound を返します
func (rl *Relay) OnJoinRoom(ctx context.Context, s *Session, roomId, peerId string) error {
	ok, err := rl.dir.Exists(ctx, roomId)
	if err != nil {
		return err
	}
	if !ok {
		return service.ErrRoomNotFound
	}
	return rl.reg.Join(roomId, s.ID(), peerId)
}

// OnMessage はルームの全メンバー（送信者を含む）にメッセージを中継します
// メンバーがいないルームへの送信は何もしません
func (rl *Relay) OnMessage(_ context.Context, s *Session, sender string, body json.RawMessage, roomId string) error {
	if strings.TrimSpace(sender) == "" {
		sender = s.ID()
	}
	n := rl.reg.Broadcast(roomId, Event{Type: TypeMessage, Payload: SignalPayload{
		Sender:        sender,
		Text:          body,
		ParticipantId: s.ID(),
		RoomId:        roomId,
	}}, "")
	if n == 0 {
		rl.log.Debug("message to empty room dropped",
			slog.String("op", "relay.message"),
			slog.String("room_id", roomId),
		)
	}
	return nil
}

// OnLeaveRoom はルームから退出させます
// 通知には参加時のピアIDを使うため peerId は使用しません
func (rl *Relay) OnLeaveRoom(_ context.Context, s *Session, roomId, _ string) error {
	return rl.reg.Leave(roomId, s.ID())
}

// OnDisconnect は接続の終了を処理します。何度呼んでも一度だけ実行されます
func (rl *Relay) OnDisconnect(s *Session) {
	rl.reg.Disconnect(s.ID())
}
