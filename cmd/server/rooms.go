package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/SteamVC/steamvc-relay/internal/service"
	"github.com/spf13/cobra"
)

// roomsCmd はルームディレクトリを直接操作する管理用コマンド
var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "Inspect and manage the room directory",
}

var roomsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every room recorded in the directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDirectory(cmd.Context(), func(ctx context.Context, svc *service.RoomService) error {
			ids, err := svc.List(ctx)
			if err != nil {
				return err
			}
			return printLines(cmd.OutOrStdout(), ids)
		})
	},
}

var roomsCreateCmd = &cobra.Command{
	Use:   "create [roomId]",
	Short: "Record a room in the directory (generates a UUID when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var roomId string
		if len(args) == 1 {
			roomId = args[0]
		}
		return withDirectory(cmd.Context(), func(ctx context.Context, svc *service.RoomService) error {
			id, err := svc.Create(ctx, roomId)
			if err != nil {
				return err
			}
			return printLines(cmd.OutOrStdout(), []string{id})
		})
	},
}

var roomsExistsCmd = &cobra.Command{
	Use:   "exists <roomId>",
	Short: "Report whether a room is recorded in the directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDirectory(cmd.Context(), func(ctx context.Context, svc *service.RoomService) error {
			ok, err := svc.Exists(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s: %w", args[0], service.ErrRoomNotFound)
			}
			return printLines(cmd.OutOrStdout(), []string{"true"})
		})
	},
}

func init() {
	roomsCmd.AddCommand(roomsListCmd, roomsCreateCmd, roomsExistsCmd)
}

// withDirectory は設定されたバックエンドを開いて fn を実行します
func withDirectory(ctx context.Context, fn func(context.Context, *service.RoomService) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	// 管理コマンドではログを出さない
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rr, closeDir, err := openDirectory(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDir()

	return fn(ctx, service.NewRoomService(rr, service.NewRoomIDGenerator(), nil, log))
}

func printLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
