package repo

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/SteamVC/steamvc-relay/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

//go:embed migrations/*.sql
var migrations embed.FS

// pgxQuerier は pgxpool.Pool が満たすメソッドだけを切り出したものです
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRoomRepo struct {
	db  pgxQuerier
	log *slog.Logger
}

func NewPostgresRoomRepo(db pgxQuerier, log *slog.Logger) *PostgresRoomRepo {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresRoomRepo{db: db, log: log}
}

// Migrate は埋め込まれた .sql ファイルを名前順に実行します
func (p *PostgresRoomRepo) Migrate(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := migrations.ReadFile("migrations/" + e.Name())
		if err != nil {
			return err
		}
		if _, err := p.db.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		p.log.Info("migration.applied", slog.String("file", e.Name()))
	}
	return nil
}

func (p *PostgresRoomRepo) CreateRoom(ctx context.Context, room models.Room) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO rooms (id, created_at)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, room.RoomId, time.Unix(room.CreatedAt, 0).UTC())
	return err
}

func (p *PostgresRoomRepo) GetRoom(ctx context.Context, roomId string) (models.Room, bool, error) {
	row := p.db.QueryRow(ctx, `SELECT id, created_at FROM rooms WHERE id = $1`, roomId)

	var (
		r         models.Room
		createdAt time.Time
	)
	if err := row.Scan(&r.RoomId, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Room{}, false, nil
		}
		return models.Room{}, false, err
	}
	r.CreatedAt = createdAt.Unix()
	return r, true, nil
}

func (p *PostgresRoomRepo) ExistsRoom(ctx context.Context, roomId string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)`, roomId).Scan(&exists)
	return exists, err
}

func (p *PostgresRoomRepo) ListRooms(ctx context.Context) ([]string, error) {
	rows, err := p.db.Query(ctx, `SELECT id FROM rooms`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}
