package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/SteamVC/steamvc-relay/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPostgresRepo(t *testing.T) (*PostgresRoomRepo, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewPostgresRoomRepo(mock, nil), mock
}

func TestPostgresRoomRepoMigrate(t *testing.T) {
	r, mock := newTestPostgresRepo(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS rooms").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, r.Migrate(context.Background()))
}

func TestPostgresRoomRepoCreateRoom(t *testing.T) {
	r, mock := newTestPostgresRepo(t)
	mock.ExpectExec("INSERT INTO rooms").
		WithArgs("r1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, r.CreateRoom(context.Background(), models.Room{RoomId: "r1", CreatedAt: 10}))
}

func TestPostgresRoomRepoExistsRoom(t *testing.T) {
	r, mock := newTestPostgresRepo(t)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("r1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("r2").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := r.ExistsRoom(context.Background(), "r1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.ExistsRoom(context.Background(), "r2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresRoomRepoGetRoomMissing(t *testing.T) {
	r, mock := newTestPostgresRepo(t)
	mock.ExpectQuery("SELECT id, created_at FROM rooms").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, ok, err := r.GetRoom(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPostgresRoomRepoListRooms(t *testing.T) {
	r, mock := newTestPostgresRepo(t)
	mock.ExpectQuery("SELECT id FROM rooms").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("b").AddRow("a"))

	ids, err := r.ListRooms(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestPostgresRoomRepoSurfacesErrors(t *testing.T) {
	r, mock := newTestPostgresRepo(t)
	boom := errors.New("connection refused")
	mock.ExpectExec("INSERT INTO rooms").WillReturnError(boom)

	err := r.CreateRoom(context.Background(), models.Room{RoomId: "r1"})
	assert.ErrorIs(t, err, boom)
}
