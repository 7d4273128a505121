package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SteamVC/steamvc-relay/internal/handlers"
	httpx "github.com/SteamVC/steamvc-relay/internal/http"
	"github.com/SteamVC/steamvc-relay/internal/lib/logger/sl"
	"github.com/SteamVC/steamvc-relay/internal/metrics"
	"github.com/SteamVC/steamvc-relay/internal/relay"
	"github.com/SteamVC/steamvc-relay/internal/service"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling relay server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info("starting relay", slog.String("env", cfg.Env), slog.String("directory", cfg.Directory.Backend))

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	rr, closeDir, err := openDirectory(startCtx, cfg, log)
	cancel()
	if err != nil {
		return err
	}
	defer closeDir()

	m := metrics.NewDefault()
	svc := service.NewRoomService(rr, service.NewRoomIDGenerator(), m, log)
	reg := relay.NewRegistry(svc, m, log)
	rl := relay.New(svc, reg, log)

	h := handlers.NewRoomHandler(svc, reg, log)
	wsHandler := handlers.NewWebSocketHandler(rl, handlers.WebSocketOptions{
		SendBuffer:      cfg.Relay.SendBuffer,
		MaxMessageBytes: cfg.Relay.MaxMessageBytes,
		AllowedOrigins:  cfg.AllowedOrigin,
	}, log)
	router := httpx.NewRouter(h, wsHandler, m.Handler(), cfg.AllowedOrigin)

	srv := &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown用のシグナルチャネル
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// サーバーを別goroutineで起動
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", cfg.APIAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// シャットダウンシグナルを待つ
	select {
	case <-sigChan:
		log.Info("shutdown signal received, shutting down gracefully...")
	case err := <-errCh:
		log.Error("server error", sl.Err(err))
		return err
	}

	// 30秒のタイムアウトでGraceful Shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", sl.Err(err))
	}

	log.Info("server stopped")
	return nil
}
