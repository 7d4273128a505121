package relay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SteamVC/steamvc-relay/internal/metrics"
	"github.com/SteamVC/steamvc-relay/internal/repo"
	"github.com/SteamVC/steamvc-relay/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *metrics.Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRegistryPrunesEmptyRoomsAndReportsMetrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	dir := service.NewRoomService(repo.NewMemoryRoomRepo(), nil, m, nil)
	reg := NewRegistry(dir, m, nil)

	a, b := NewSession("A", 0), NewSession("B", 0)
	reg.Connect(a)
	reg.Connect(b)

	_, err := reg.CreateAndJoin(ctx, "R1", "A", "")
	require.NoError(t, err)
	require.NoError(t, reg.Join("R1", "B", ""))
	assert.Equal(t, 1, reg.ActiveRooms())
	assert.Equal(t, 2, reg.SessionCount())

	out := scrape(t, m)
	assert.Contains(t, out, "relay_sessions_active 2")
	assert.Contains(t, out, "relay_rooms_active 1")

	require.NoError(t, reg.Leave("R1", "A"))
	require.NoError(t, reg.Leave("R1", "B"))
	assert.Zero(t, reg.ActiveRooms())
	assert.Empty(t, reg.Members("R1"))

	// ディレクトリの記録は残る
	ok, err := dir.Exists(ctx, "R1")
	require.NoError(t, err)
	assert.True(t, ok)

	// 空になったルームにも再び参加できる
	require.NoError(t, reg.Join("R1", "A", ""))
	assert.Equal(t, []string{"A"}, reg.Members("R1"))

	reg.Disconnect("A")
	reg.Disconnect("B")
	out = scrape(t, m)
	assert.Contains(t, out, "relay_sessions_active 0")
	assert.Contains(t, out, "relay_rooms_active 0")
}

func TestRegistryUnknownSession(t *testing.T) {
	reg := NewRegistry(nil, nil, nil)

	assert.ErrorIs(t, reg.Join("R1", "ghost", ""), service.ErrSessionClosed)
	assert.NoError(t, reg.Leave("R1", "ghost"))
	reg.Disconnect("ghost")
	assert.Zero(t, reg.Broadcast("R1", Event{Type: TypePong}, ""))
	assert.Empty(t, reg.Members("R1"))
}

func TestBroadcastExcludesSender(t *testing.T) {
	reg := NewRegistry(nil, nil, nil)
	a, b := NewSession("A", 0), NewSession("B", 0)
	reg.Connect(a)
	reg.Connect(b)
	require.NoError(t, reg.Join("R1", "A", ""))
	require.NoError(t, reg.Join("R1", "B", ""))
	drain(a)
	drain(b)

	n := reg.Broadcast("R1", Event{Type: TypeMessage}, "A")
	assert.Equal(t, 1, n)
	assert.Empty(t, drain(a))
	assert.Len(t, drain(b), 1)
}
