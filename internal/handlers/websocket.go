package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/SteamVC/steamvc-relay/internal/idgen"
	"github.com/SteamVC/steamvc-relay/internal/lib/logger/sl"
	"github.com/SteamVC/steamvc-relay/internal/relay"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second    // 1回の書き込みに許す時間
	pongWait   = 60 * time.Second    // 次のpongを待つ時間
	pingPeriod = (pongWait * 9) / 10 // pingの送信間隔（pongWaitより短くする）

	defaultMaxMessageBytes = 64 * 1024 // SDPを含むシグナリングには十分
)

// WebSocketOptions はWebSocket接続の設定
type WebSocketOptions struct {
	SendBuffer      int      // 接続ごとの送信キュー容量
	MaxMessageBytes int64    // 受信フレームの最大サイズ
	AllowedOrigins  []string // 空の場合はすべてのOriginを許可
}

// WebSocketHandler はWebSocket接続を処理するハンドラー
type WebSocketHandler struct {
	relay    *relay.Relay       // イベントを処理するリレー
	opts     WebSocketOptions   // 接続の設定
	upgrader websocket.Upgrader // HTTPからWebSocketへのアップグレーダー
	log      *slog.Logger
}

// NewWebSocketHandler は新しいWebSocketHandlerを作成します
func NewWebSocketHandler(rl *relay.Relay, opts WebSocketOptions, log *slog.Logger) *WebSocketHandler {
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = defaultMaxMessageBytes
	}
	if log == nil {
		log = slog.Default()
	}
	h := &WebSocketHandler{relay: rl, opts: opts, log: log}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin は許可リストが設定されている場合のみOriginを検証します
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

// HandleWebSocket はWebSocket接続を処理します
// 接続後、以下の処理を行います:
// 1. HTTPからWebSocketへのアップグレード
// 2. セッションの登録（welcome の送信）
// 3. 書き込みループの開始と受信ループの実行
// 4. 切断時のルーム退出とクリーンアップ
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.websocket"

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", slog.String("op", op), sl.Err(err))
		return
	}

	s := relay.NewSession(idgen.NewULID(), h.opts.SendBuffer)
	log := h.log.With(slog.String("op", op), slog.String("participant_id", s.ID()))

	h.relay.Connect(s)
	log.Info("websocket connected", slog.String("remote_addr", r.RemoteAddr))

	go h.writePump(conn, s, log)
	h.readPump(conn, s, log)
}

// readPump は受信フレームをリレーに渡します
// 1つの接続につき1つのgoroutineだけが読み込みを行います
func (h *WebSocketHandler) readPump(conn *websocket.Conn, s *relay.Session, log *slog.Logger) {
	defer func() {
		// 切断時にルームから退出させ、送信キューを閉じる
		h.relay.OnDisconnect(s)
		conn.Close()
		log.Info("websocket disconnected")
	}()

	conn.SetReadLimit(h.opts.MaxMessageBytes)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// 接続中のイベントはこの接続の寿命に紐づける
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read error", sl.Err(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		h.relay.Handle(ctx, s, data)
	}
}

// writePump は送信キューのイベントを接続に書き込みます
// 送信キューが閉じられたら接続を閉じ、受信ループも終了させます
func (h *WebSocketHandler) writePump(conn *websocket.Conn, s *relay.Session, log *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-s.Outbound():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug("websocket write error", sl.Err(err))
				// 受信ループ側で切断処理が行われる
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
