package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SteamVC/steamvc-relay/internal/lib/logger/sl"
	"github.com/SteamVC/steamvc-relay/internal/relay"
	"github.com/SteamVC/steamvc-relay/internal/service"
	"github.com/go-chi/chi/v5"
)

// RoomHandler はルームディレクトリのHTTPエンドポイントを提供します
type RoomHandler struct {
	svc *service.RoomService
	reg *relay.Registry // ライブメンバー数の参照用
	log *slog.Logger
}

func NewRoomHandler(s *service.RoomService, reg *relay.Registry, log *slog.Logger) *RoomHandler {
	if log == nil {
		log = slog.Default()
	}
	return &RoomHandler{svc: s, reg: reg, log: log}
}

type createRoomRequest struct {
	RoomId string `json:"roomId"`
}

type createRoomResponse struct {
	Id string `json:"id"`
}

type roomResponse struct {
	RoomId    string `json:"roomId"`
	CreatedAt int64  `json:"createdAt"`
	Members   int    `json:"members"`
}

type activeRoomsResponse struct {
	ActiveRooms int `json:"activeRooms"`
}

// CreateRedirect はルームを作成してルームページへリダイレクトします
func (h *RoomHandler) CreateRedirect(w http.ResponseWriter, r *http.Request) {
	id, err := h.svc.Create(r.Context(), "")
	if err != nil {
		h.log.Error("create room failed", slog.String("op", "handlers.room.createRedirect"), sl.Err(err))
		h.writeServiceError(w, err)
		return
	}
	http.Redirect(w, r, "/room/"+id, http.StatusFound)
}

// Create はルームを作成してIDを返します
// ボディで roomId を指定しない場合はUUIDを生成します
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in createRoomRequest
	if !decodeJSON(w, r, &in, true) {
		return
	}
	if normalizeID(in.RoomId) != "" {
		if err := validateRoomId(in.RoomId); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	id, err := h.svc.Create(r.Context(), in.RoomId)
	if err != nil {
		h.log.Error("create room failed", slog.String("op", "handlers.room.create"), sl.Err(err))
		h.writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, createRoomResponse{Id: id})
}

// Get はルームの情報とライブメンバー数を返します
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	roomId := normalizeID(chi.URLParam(r, "roomId"))
	if err := validateRoomId(roomId); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	room, ok, err := h.svc.Get(r.Context(), roomId)
	if err != nil {
		h.log.Error("get room failed", slog.String("op", "handlers.room.get"), slog.String("room_id", roomId), sl.Err(err))
		h.writeServiceError(w, err)
		return
	}
	if !ok {
		h.writeServiceError(w, service.ErrRoomNotFound)
		return
	}
	respondJSON(w, http.StatusOK, roomResponse{
		RoomId:    room.RoomId,
		CreatedAt: room.CreatedAt,
		Members:   len(h.reg.Members(room.RoomId)),
	})
}

// List はディレクトリに記録された全ルームIDを返します
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.List(r.Context())
	if err != nil {
		h.log.Error("list rooms failed", slog.String("op", "handlers.room.list"), sl.Err(err))
		h.writeServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, ids)
}

// ActiveRooms はメンバーが1人以上いるルームの数を返します
func (h *RoomHandler) ActiveRooms(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, activeRoomsResponse{ActiveRooms: h.reg.ActiveRooms()})
}

func (h *RoomHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound):
		respondError(w, http.StatusNotFound, service.ErrRoomNotFound.Error())
	case errors.Is(err, service.ErrInvalidRoomID):
		respondError(w, http.StatusBadRequest, service.ErrInvalidRoomID.Error())
	case errors.Is(err, service.ErrDirectoryUnavailable):
		respondError(w, http.StatusServiceUnavailable, service.ErrDirectoryUnavailable.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
