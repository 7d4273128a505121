package relay

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/SteamVC/steamvc-relay/internal/metrics"
	"github.com/SteamVC/steamvc-relay/internal/models"
	"github.com/SteamVC/steamvc-relay/internal/service"
)

// Directory はルームの永続的な存在を管理します
type Directory interface {
	Create(ctx context.Context, roomId string) (string, error)
	Exists(ctx context.Context, roomId string) (bool, error)
}

// Registry はプロセス内のルーム参加状態を管理します
//
// ロック順序: Session.memberMu → Registry.mu → room.mu → Session.mu
// ルームへの配信はすべて room.mu を保持したまま送信キューに積むため、
// 各メンバーはルーム内のイベントを適用された順に受け取ります
type Registry struct {
	dir Directory

	mu       sync.Mutex
	sessions map[string]*Session
	rooms    map[string]*room

	metrics *metrics.Metrics
	log     *slog.Logger
}

type member struct {
	s      *Session
	peerId string
}

// room は1つのルームのライブメンバーを保持します
// メンバーが0人になるとレジストリから外され deleted が立ちます
type room struct {
	id      string
	mu      sync.Mutex
	members map[string]member
	deleted bool
}

// NewRegistry は新しいRegistryを作成します
func NewRegistry(dir Directory, m *metrics.Metrics, log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		dir:      dir,
		sessions: make(map[string]*Session),
		rooms:    make(map[string]*room),
		metrics:  m,
		log:      log,
	}
}

// Connect は接続をレジストリに登録します
func (r *Registry) Connect(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	r.metrics.SessionOpened()
}

func (r *Registry) session(participantId string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[participantId]
}

// Join は接続をルームに参加させます
// 既に同じルームにいる場合は何もせず成功します
// 他のメンバーに user-connected を、本人に room-joined を送ります
func (r *Registry) Join(roomId, participantId, peerId string) error {
	return r.join(roomId, participantId, peerId, false)
}

// CreateAndJoin はルームをディレクトリに記録してから参加させます
// roomId が空の場合は生成されたIDを使います
// 本人には room-created, room-joined の順に送ります
func (r *Registry) CreateAndJoin(ctx context.Context, roomId, participantId, peerId string) (string, error) {
	s := r.session(participantId)
	if s == nil {
		return "", service.ErrSessionClosed
	}
	if cur := s.Room(); cur != "" && cur != roomId {
		return "", service.ErrAlreadyInAnotherRoom
	}

	id, err := r.dir.Create(ctx, roomId)
	if err != nil {
		return "", err
	}
	if err := r.join(id, participantId, peerId, true); err != nil {
		return "", err
	}
	return id, nil
}

func (r *Registry) join(roomId, participantId, peerId string, created bool) error {
	s := r.session(participantId)
	if s == nil {
		return service.ErrSessionClosed
	}

	s.memberMu.Lock()
	defer s.memberMu.Unlock()

	if s.gone {
		return service.ErrSessionClosed
	}
	if s.roomId == roomId {
		if created {
			r.Reply(s, Event{Type: TypeRoomCreated, Payload: RoomCreatedPayload{RoomId: roomId, ParticipantId: s.id}})
		}
		return nil
	}
	if s.roomId != "" {
		return service.ErrAlreadyInAnotherRoom
	}

	for {
		rm := r.roomFor(roomId)
		rm.mu.Lock()
		if rm.deleted {
			// 空になって外された直後のルーム。作り直す
			rm.mu.Unlock()
			continue
		}

		others := rm.snapshot()
		rm.members[s.id] = member{s: s, peerId: peerId}
		s.roomId, s.peerId = roomId, peerId

		acks := []Event{{Type: TypeRoomJoined, Payload: RoomJoinedPayload{
			RoomId:        roomId,
			ParticipantId: s.id,
			Members:       others,
		}}}
		if created {
			acks = append([]Event{{Type: TypeRoomCreated, Payload: RoomCreatedPayload{RoomId: roomId, ParticipantId: s.id}}}, acks...)
		}
		var evicted []string
		for _, ev := range acks {
			if _, evict := r.send(s, ev); evict {
				evicted = append(evicted, s.id)
				break
			}
		}
		_, evicted = r.fanoutLocked(rm, Event{Type: TypeUserConnected, Payload: PresencePayload{
			ParticipantId: s.id,
			PeerId:        peerId,
			RoomId:        roomId,
		}}, s.id, evicted)
		rm.mu.Unlock()

		r.log.Debug("participant joined",
			slog.String("op", "relay.registry.join"),
			slog.String("room_id", roomId),
			slog.String("participant_id", s.id),
		)
		r.evict(evicted)
		return nil
	}
}

// roomFor はルームのエントリを取得し、無ければ作成します
func (r *Registry) roomFor(roomId string) *room {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[roomId]
	if !ok {
		rm = &room{id: roomId, members: make(map[string]member)}
		r.rooms[roomId] = rm
		r.metrics.SetActiveRooms(len(r.rooms))
	}
	return rm
}

// Leave は接続をルームから退出させます
// 参加していない場合（別のルームにいる場合を含む）は何もしません
func (r *Registry) Leave(roomId, participantId string) error {
	s := r.session(participantId)
	if s == nil {
		return nil
	}
	s.memberMu.Lock()
	defer s.memberMu.Unlock()

	if s.roomId == "" || s.roomId != roomId {
		return nil
	}
	r.leaveLocked(s)
	return nil
}

// leaveLocked は s.memberMu を保持した状態で呼び出します
func (r *Registry) leaveLocked(s *Session) {
	roomId, peerId := s.roomId, s.peerId
	s.roomId, s.peerId = "", ""

	r.mu.Lock()
	rm, ok := r.rooms[roomId]
	if !ok {
		r.mu.Unlock()
		return
	}
	rm.mu.Lock()
	delete(rm.members, s.id)
	if len(rm.members) == 0 {
		rm.deleted = true
		delete(r.rooms, roomId)
		r.metrics.SetActiveRooms(len(r.rooms))
	}
	r.mu.Unlock()

	_, evicted := r.fanoutLocked(rm, Event{Type: TypeUserDisconnected, Payload: PresencePayload{
		ParticipantId: s.id,
		PeerId:        peerId,
		RoomId:        roomId,
	}}, s.id, nil)
	rm.mu.Unlock()

	r.log.Debug("participant left",
		slog.String("op", "relay.registry.leave"),
		slog.String("room_id", roomId),
		slog.String("participant_id", s.id),
	)
	r.evict(evicted)
}

// Disconnect は接続を終了します
// 現在のルームから退出させ（残りのメンバーに user-disconnected を送信）、送信キューを閉じます
// 1つの接続につき一度だけ実行され、2回目以降は何もしません
func (r *Registry) Disconnect(participantId string) {
	r.mu.Lock()
	s, ok := r.sessions[participantId]
	delete(r.sessions, participantId)
	r.mu.Unlock()
	if !ok {
		return
	}

	s.memberMu.Lock()
	s.gone = true
	if s.roomId != "" {
		r.leaveLocked(s)
	}
	s.memberMu.Unlock()

	s.Close()
	r.metrics.SessionClosed()
	r.log.Debug("participant disconnected",
		slog.String("op", "relay.registry.disconnect"),
		slog.String("participant_id", participantId),
	)
}

// Broadcast はルームの全メンバーにイベントを送ります（exclude を除く）
// 配信できたメンバー数を返します。メンバーがいない場合は0です
func (r *Registry) Broadcast(roomId string, ev Event, exclude string) int {
	r.mu.Lock()
	rm, ok := r.rooms[roomId]
	r.mu.Unlock()
	if !ok {
		return 0
	}

	rm.mu.Lock()
	if rm.deleted {
		rm.mu.Unlock()
		return 0
	}
	n, evicted := r.fanoutLocked(rm, ev, exclude, nil)
	rm.mu.Unlock()

	r.evict(evicted)
	return n
}

// Members はルームの現在のメンバー（接続ID）をソートして返します
func (r *Registry) Members(roomId string) []string {
	r.mu.Lock()
	rm, ok := r.rooms[roomId]
	r.mu.Unlock()
	if !ok {
		return []string{}
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	ids := make([]string, 0, len(rm.members))
	for id := range rm.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ActiveRooms はメンバーが1人以上いるルームの数を返します
func (r *Registry) ActiveRooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// SessionCount は接続中のセッション数を返します
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// snapshot は rm.mu を保持した状態で呼び出します
func (rm *room) snapshot() []models.Member {
	out := make([]models.Member, 0, len(rm.members))
	for id, m := range rm.members {
		out = append(out, models.Member{ParticipantId: id, PeerId: m.peerId})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantId < out[j].ParticipantId })
	return out
}

// fanoutLocked は rm.mu を保持した状態で呼び出します
// 送信キューが一杯のメンバーは evicted に追加されます
func (r *Registry) fanoutLocked(rm *room, ev Event, exclude string, evicted []string) (int, []string) {
	delivered := 0
	for id, m := range rm.members {
		if id == exclude {
			continue
		}
		ok, evict := r.send(m.s, ev)
		if ok {
			delivered++
		}
		if evict {
			evicted = append(evicted, id)
		}
	}
	r.metrics.EventRelayed(ev.Type, delivered)
	return delivered, evicted
}

// send は1つの接続に送信します
// バックプレッシャーの場合は evict が true になります
func (r *Registry) send(s *Session, ev Event) (ok, evict bool) {
	err := s.Send(ev)
	switch {
	case err == nil:
		return true, false
	case errors.Is(err, service.ErrDeliveryBackpressure):
		r.metrics.DeliveryDropped()
		return false, true
	default:
		// Disconnect処理中の接続
		return false, false
	}
}

// Reply は1つの接続にイベントを送ります
// キューが一杯ならその接続を切断します
func (r *Registry) Reply(s *Session, ev Event) {
	if _, evict := r.send(s, ev); evict {
		r.evict([]string{s.id})
	}
}

// evict は送信が追いつかない接続を非同期で切断します
// ルームのロックを解放した後に呼び出します
func (r *Registry) evict(ids []string) {
	for _, id := range ids {
		r.log.Warn("outbound buffer full, disconnecting participant",
			slog.String("op", "relay.registry.evict"),
			slog.String("participant_id", id),
		)
		go r.Disconnect(id)
	}
}
