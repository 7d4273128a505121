package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SteamVC/steamvc-relay/internal/models"
	"github.com/SteamVC/steamvc-relay/internal/relay"
	"github.com/SteamVC/steamvc-relay/internal/repo"
	"github.com/SteamVC/steamvc-relay/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoomHandler(t *testing.T, r repo.RoomRepo) (*RoomHandler, *relay.Relay, http.Handler) {
	t.Helper()
	svc := service.NewRoomService(r, nil, nil, nil)
	reg := relay.NewRegistry(svc, nil, nil)
	rl := relay.New(svc, reg, nil)
	h := NewRoomHandler(svc, reg, nil)

	router := chi.NewRouter()
	router.Get("/create-room", h.CreateRedirect)
	router.Post("/create-room", h.Create)
	router.Get("/room/{roomId}", h.Get)
	router.Get("/rooms", h.List)
	router.Get("/active-rooms", h.ActiveRooms)
	return h, rl, router
}

func TestCreateRoomRedirects(t *testing.T) {
	rr := repo.NewMemoryRoomRepo()
	_, _, router := newTestRoomHandler(t, rr)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/create-room", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	loc := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(loc, "/room/"), loc)

	ok, err := rr.ExistsRoom(context.Background(), strings.TrimPrefix(loc, "/room/"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateRoomReturnsID(t *testing.T) {
	_, _, router := newTestRoomHandler(t, repo.NewMemoryRoomRepo())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/create-room", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out createRoomResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out.Id, 36)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/create-room", strings.NewReader(`{"roomId":"lobby"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"lobby"}`, rec.Body.String())
}

func TestCreateRoomRejectsBadBody(t *testing.T) {
	_, _, router := newTestRoomHandler(t, repo.NewMemoryRoomRepo())

	for _, body := range []string{`{"roomId":`, `{"owner":"x"}`, `{"roomId":"` + strings.Repeat("x", 200) + `"}`} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/create-room", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestGetRoom(t *testing.T) {
	rr := repo.NewMemoryRoomRepo()
	require.NoError(t, rr.CreateRoom(context.Background(), models.Room{RoomId: "R1", CreatedAt: 1700000000}))
	_, rl, router := newTestRoomHandler(t, rr)

	s := relay.NewSession("A", 0)
	rl.Connect(s)
	require.NoError(t, rl.OnJoinRoom(context.Background(), s, "R1", ""))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/room/R1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"roomId":"R1","createdAt":1700000000,"members":1}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/active-rooms", nil))
	assert.JSONEq(t, `{"activeRooms":1}`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/room/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"room not found"}`, rec.Body.String())
}

func TestListRooms(t *testing.T) {
	rr := repo.NewMemoryRoomRepo()
	_, _, router := newTestRoomHandler(t, rr)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	for _, id := range []string{"b", "a"} {
		require.NoError(t, rr.CreateRoom(context.Background(), models.Room{RoomId: id}))
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	assert.JSONEq(t, `["a","b"]`, rec.Body.String())
}

type brokenRepo struct{}

func (brokenRepo) CreateRoom(context.Context, models.Room) error { return errors.New("redis down") }
func (brokenRepo) GetRoom(context.Context, string) (models.Room, bool, error) {
	return models.Room{}, false, errors.New("redis down")
}
func (brokenRepo) ExistsRoom(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}
func (brokenRepo) ListRooms(context.Context) ([]string, error) { return nil, errors.New("redis down") }

func TestDirectoryFailureMapsTo503(t *testing.T) {
	_, _, router := newTestRoomHandler(t, brokenRepo{})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/create-room", nil),
		httptest.NewRequest(http.MethodPost, "/create-room", nil),
		httptest.NewRequest(http.MethodGet, "/room/R1", nil),
		httptest.NewRequest(http.MethodGet, "/rooms", nil),
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, req.Method+" "+req.URL.Path)
	}
}

func TestWriteServiceError(t *testing.T) {
	h := &RoomHandler{}
	cases := []struct {
		err  error
		code int
	}{
		{service.ErrRoomNotFound, http.StatusNotFound},
		{service.ErrInvalidRoomID, http.StatusBadRequest},
		{service.ErrRoomIDGenerationFailed, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		h.writeServiceError(rec, tc.err)
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())
	}
}
