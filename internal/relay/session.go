package relay

import (
	"sync"

	"github.com/SteamVC/steamvc-relay/internal/service"
)

// DefaultSendBuffer は送信キューのデフォルト容量
const DefaultSendBuffer = 256

// Session は1つの接続を表します
// 所属ルームは memberMu で保護され、送信キューは mu で保護されます
type Session struct {
	id string

	memberMu sync.Mutex // ルーム参加状態の変更を直列化
	roomId   string     // 現在のルーム（未参加なら空）
	peerId   string     // 参加時に渡されたピアID
	gone     bool       // Disconnect済み

	mu        sync.Mutex
	closed    bool
	out       chan Event
	closeOnce sync.Once
}

// NewSession は新しいSessionを作成します
// buffer が0以下の場合はデフォルト容量を使用します
func NewSession(id string, buffer int) *Session {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Session{id: id, out: make(chan Event, buffer)}
}

// ID は接続IDを返します
func (s *Session) ID() string { return s.id }

// Room は現在所属しているルームIDを返します
func (s *Session) Room() string {
	s.memberMu.Lock()
	defer s.memberMu.Unlock()
	return s.roomId
}

// Send はイベントを送信キューに積みます
// ブロックせず、キューが一杯なら ErrDeliveryBackpressure を返します
func (s *Session) Send(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return service.ErrSessionClosed
	}
	select {
	case s.out <- ev:
		return nil
	default:
		return service.ErrDeliveryBackpressure
	}
}

// Close は送信キューを閉じます。2回目以降の呼び出しは何もしません
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.out)
		s.mu.Unlock()
	})
}

// Outbound は送信キューを返します。Close後に閉じられます
func (s *Session) Outbound() <-chan Event { return s.out }
