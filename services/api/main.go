package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatroom/internal/attachment"
	"github.com/chatroom/internal/auth"
	"github.com/chatroom/internal/config"
	"github.com/chatroom/internal/handler"
	"github.com/chatroom/internal/logger"
	"github.com/chatroom/internal/repository"
	"github.com/chatroom/internal/service"
	"github.com/chatroom/internal/startup"
	"github.com/chatroom/internal/storage"
	"github.com/chatroom/internal/storage/memory"
	"github.com/chatroom/internal/ws"
)

func main() {
	logger.SetPrefix("api")
	migrate := flag.Bool("migrate", false, "run database migrations and exit")
	dev := flag.Bool("dev", false, "start with embedded PostgreSQL (no external DB required)")
	flag.Parse()

	logger.Info("starting chat API")
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)

	var store storage.Store
	switch {
	case cfg.StoreDriver == config.StoreMemory && !*dev:
		logger.Info("store: in-memory (data is lost on restart)")
		store = memory.New()
	default:
		if *dev {
			embeddedDB, err := startEmbeddedPostgres(cfg)
			if err != nil {
				logger.Errorf("embedded postgres: %v", err)
				os.Exit(1)
			}
			defer func() {
				logger.Info("stopping embedded postgres...")
				if err := embeddedDB.Stop(); err != nil {
					logger.Errorf("embedded postgres stop: %v", err)
				}
			}()
		}
		pool := connectPostgres(cfg)
		defer pool.Close()
		if err := startup.Migrate(cfg.DatabaseURL()); err != nil {
			logger.Errorf("migrations: %v", err)
			os.Exit(1)
		}
		logger.Info("database connected, migrations applied")
		if *migrate && !*dev {
			return
		}
		store = repository.New(pool)
	}

	var tokens storage.TokenStore
	if cfg.Redis.URL != "" {
		tokens = startup.ConnectRedisWithRetry(cfg.Redis.URL, 30*time.Second, "")
		logger.Info("token store: redis")
	} else {
		tokens = memory.NewTokens()
		logger.Info("token store: in-memory")
	}
	defer func() {
		if err := tokens.Close(); err != nil {
			logger.Errorf("token store close: %v", err)
		}
	}()

	manager := auth.NewManager(cfg.JWT.Secret, cfg.JWT.TTL, cfg.JWT.Issuer, tokens)
	files := attachment.New(cfg.UploadDir, cfg.MaxUploadSize)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	hub := ws.NewHub(ws.HubOptions{
		MaxConns:    cfg.MaxWSConnections,
		Peers:       service.NewPeerDirectory(store.Chats()),
		PeerTimeout: cfg.StoreTimeout,
	})
	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	router := handler.NewRouter(handler.RouterDeps{
		Config:   cfg,
		Chats:    service.NewChatService(store, hub.Dispatcher(), files, cfg.StoreTimeout),
		Messages: service.NewMessageService(store, hub.Dispatcher(), files, cfg.StoreTimeout),
		Users:    service.NewUserService(store.Users(), manager, tokens, cfg.StoreTimeout),
		Files:    files,
		Hub:      hub,
		Verifier: manager,
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("server error: %v", err)
			hubCancel()
			hubWg.Wait()
			return
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	// websocket-соединения hijacked и Shutdown их не ждёт: закрывает hub
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}

func connectPostgres(cfg *config.Config) *pgxpool.Pool {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		logger.Errorf("parse db config: %v", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	poolCfg.MinConns = 2
	return startup.ConnectDBWithRetry(poolCfg, 60*time.Second, "")
}

func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5433
		user     = "chat"
		password = "chat_secret"
		database = "chat"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "embedded-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
