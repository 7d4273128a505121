package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/SteamVC/steamvc-relay/internal/config"
	"github.com/spf13/cobra"
)

var flagConfig string

// rootCmd はサブコマンドなしで呼ばれた場合のコマンド
var rootCmd = &cobra.Command{
	Use:   "steamvc-relay",
	Short: "Signaling relay for peer-to-peer rooms",
	Long: `steamvc-relay lets peers discover each other inside named rooms and relays
the signaling messages they need to set up a direct WebRTC connection.

Examples:
  steamvc-relay serve
  steamvc-relay serve --config config/local.yaml
  steamvc-relay rooms create lobby`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default $CONFIG_PATH)")
	rootCmd.AddCommand(serveCmd, roomsCmd)
}

// Execute はルートコマンドを実行します
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig は設定を読み込み、環境に応じたロガーを作成します
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	return cfg, setupLogger(cfg.Env), nil
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case config.EnvProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}
