package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/hotel-checkin/backend/internal/config"
	"github.com/zhouzirui/hotel-checkin/backend/internal/handler"
	"github.com/zhouzirui/hotel-checkin/backend/internal/inference"
	"github.com/zhouzirui/hotel-checkin/backend/internal/service/reservation"
	"github.com/zhouzirui/hotel-checkin/backend/internal/service/stream"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if !cfg.Inference.Enabled() {
		log.Fatal("INFERENCE_BASE_URL 未配置，识别流水线无法工作")
	}
	engine := inference.NewHTTPEngine(cfg.Inference.BaseURL, cfg.Inference.Timeout)

	// 预订后端未配置时识别仍然可用，只是确认的来宾不会进入入住编排
	var directory stream.ReservationDirectory
	if cfg.Reservation.Enabled() {
		directory = reservation.NewClient(cfg.Reservation.BaseURL, cfg.Reservation.Token, cfg.Reservation.Timeout)
		log.Println("reservation backend configured")
	} else {
		log.Println("RESERVATION_BASE_URL 未配置，跳过入住编排初始化")
	}

	manager := stream.NewManager(cfg.Stream.Options(), engine, directory)

	router := handler.NewRouter(manager)

	startServer(ctx, cfg.Server, router)

	// 服务停止后给存活会话一个收尾窗口
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	manager.Shutdown(shutdownCtx)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("hotel check-in backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
