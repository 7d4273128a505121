package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/SteamVC/steamvc-relay/internal/models"
	"github.com/SteamVC/steamvc-relay/internal/service"
)

// クライアントから受信するイベント種別
const (
	TypeCreateRoom = "create-room"
	TypeJoinRoom   = "join-room"
	TypeLeaveRoom  = "leave-room"
	TypeMessage    = "message"
	TypePing       = "ping"
)

// クライアントへ送信するイベント種別
const (
	TypeWelcome          = "welcome"
	TypeRoomCreated      = "room-created"
	TypeRoomJoined       = "room-joined"
	TypeUserConnected    = "user-connected"
	TypeUserDisconnected = "user-disconnected"
	TypeError            = "error"
	TypePong             = "pong"
)

// error イベントのコード
const (
	CodeRoomNotFound         = "room_not_found"
	CodeAlreadyInAnotherRoom = "already_in_another_room"
	CodeInvalidEvent         = "invalid_event"
	CodeDirectoryUnavailable = "directory_unavailable"
	CodeInternal             = "internal"
)

// Envelope は受信フレームの構造
// payload は種別が決まるまでデコードしません
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event は送信キューに積まれるメッセージ
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// CreateRoomPayload は create-room のペイロード
// roomId が空の場合はサーバー側で生成します
type CreateRoomPayload struct {
	RoomId string `json:"roomId"`
	PeerId string `json:"peerId"`
}

// JoinRoomPayload は join-room のペイロード
type JoinRoomPayload struct {
	RoomId string `json:"roomId"`
	PeerId string `json:"peerId"`
}

// LeaveRoomPayload は leave-room のペイロード
type LeaveRoomPayload struct {
	RoomId string `json:"roomId"`
	PeerId string `json:"peerId"`
}

// MessagePayload は message のペイロード
// body は解釈せずにそのまま中継します
type MessagePayload struct {
	Sender string          `json:"sender"`
	Body   json.RawMessage `json:"body"`
	RoomId string          `json:"roomId"`
}

type WelcomePayload struct {
	ParticipantId string `json:"participantId"`
}

type RoomCreatedPayload struct {
	RoomId        string `json:"roomId"`
	ParticipantId string `json:"participantId"`
}

// RoomJoinedPayload は参加者本人への応答で、既存メンバーの一覧を含みます
type RoomJoinedPayload struct {
	RoomId        string          `json:"roomId"`
	ParticipantId string          `json:"participantId"`
	Members       []models.Member `json:"members"`
}

// PresencePayload は user-connected / user-disconnected のペイロード
type PresencePayload struct {
	ParticipantId string `json:"participantId"`
	PeerId        string `json:"peerId"`
	RoomId        string `json:"roomId"`
}

// SignalPayload は中継される message のペイロード
type SignalPayload struct {
	Sender        string          `json:"sender"`
	Text          json.RawMessage `json:"text"`
	ParticipantId string          `json:"participantId"`
	RoomId        string          `json:"roomId"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DecodeEnvelope は受信フレームをEnvelopeにデコードします
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := strictUnmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", service.ErrInvalidEvent, err)
	}
	if strings.TrimSpace(env.Type) == "" {
		return Envelope{}, fmt.Errorf("%w: type required", service.ErrInvalidEvent)
	}
	return env, nil
}

// decodePayload はペイロードを dst にデコードします
// 未知のフィールドはエラーになります
func decodePayload(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		raw = json.RawMessage("{}")
	}
	if err := strictUnmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %w", service.ErrInvalidEvent, err)
	}
	return nil
}

func strictUnmarshal(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON value")
	}
	return nil
}

func (p *JoinRoomPayload) validate() error {
	id, err := service.NormalizeRoomID(p.RoomId)
	if err != nil {
		return fmt.Errorf("%w: roomId required", service.ErrInvalidEvent)
	}
	p.RoomId = id
	return nil
}

func (p *LeaveRoomPayload) validate() error {
	id, err := service.NormalizeRoomID(p.RoomId)
	if err != nil {
		return fmt.Errorf("%w: roomId required", service.ErrInvalidEvent)
	}
	p.RoomId = id
	return nil
}

func (p *CreateRoomPayload) validate() error {
	if strings.TrimSpace(p.RoomId) == "" {
		p.RoomId = ""
		return nil
	}
	id, err := service.NormalizeRoomID(p.RoomId)
	if err != nil {
		return fmt.Errorf("%w: invalid roomId", service.ErrInvalidEvent)
	}
	p.RoomId = id
	return nil
}

func (p *MessagePayload) validate() error {
	id, err := service.NormalizeRoomID(p.RoomId)
	if err != nil {
		return fmt.Errorf("%w: roomId required", service.ErrInvalidEvent)
	}
	p.RoomId = id
	if len(bytes.TrimSpace(p.Body)) == 0 {
		return fmt.Errorf("%w: body required", service.ErrInvalidEvent)
	}
	return nil
}

// errorEvent はエラーを呼び出し元向けの error イベントに変換します
func errorEvent(err error) Event {
	code, msg := CodeInternal, "internal error"
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		code, msg = CodeRoomNotFound, service.ErrRoomNotFound.Error()
	case errors.Is(err, service.ErrAlreadyInAnotherRoom):
		code, msg = CodeAlreadyInAnotherRoom, service.ErrAlreadyInAnotherRoom.Error()
	case errors.Is(err, service.ErrInvalidEvent), errors.Is(err, service.ErrInvalidRoomID):
		code, msg = CodeInvalidEvent, err.Error()
	case errors.Is(err, service.ErrDirectoryUnavailable):
		code, msg = CodeDirectoryUnavailable, service.ErrDirectoryUnavailable.Error()
	}
	return Event{Type: TypeError, Payload: ErrorPayload{Code: code, Message: msg}}
}
