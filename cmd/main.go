package main

import (
	"chatroom/backend/internal/api/handler"
	"chatroom/backend/internal/auth"
	"chatroom/backend/internal/blob"
	"chatroom/backend/internal/chathub"
	"chatroom/backend/internal/config"
	"chatroom/backend/internal/decoder"
	"chatroom/backend/internal/localization"
	"chatroom/backend/internal/messagelog"
	"chatroom/backend/internal/notify"
	"chatroom/backend/internal/presence"
	"chatroom/backend/internal/profile"
	"chatroom/backend/internal/storage"
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg config.Config) (*gorm.DB, *redis.Client) {
	// 1. PostgreSQL
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	// 2. Redis (change feed, server clock, token revocation)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: "",
		DB:       0,
	})

	// Перевірка з'єднання Redis
	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	log.Println("Database and Redis connections established.")
	return db, rdb
}

func setupBlobs(ctx context.Context, cfg config.Config) blob.Store {
	if cfg.MinioEndpoint == "" {
		log.Println("WARNING: MINIO_ENDPOINT not set, profile images are kept in memory.")
		return blob.NewMemoryStore(cfg.MinioBucket)
	}
	store, err := blob.NewMinioStore(blob.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		UseSSL:    cfg.MinioUseSSL,
		Bucket:    cfg.MinioBucket,
	})
	if err != nil {
		log.Fatalf("Failed to configure MinIO: %v", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		log.Fatalf("Failed to prepare bucket %s: %v", cfg.MinioBucket, err)
	}
	return store
}

func setupNotifier(cfg config.Config) notify.Notifier {
	if cfg.TelegramBotToken == "" || cfg.TelegramChatID == 0 {
		log.Println("WARNING: Telegram is not configured, notifications go to the log.")
		return notify.LogNotifier{}
	}
	n, err := notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		log.Printf("ERROR: Не вдалося запустити Telegram-бота: %v", err)
		return notify.LogNotifier{}
	}
	return n
}

func main() {
	log.Println("Starting Chatroom Backend...")
	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET не встановлено!")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Ініціалізація залежностей
	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)
	if err := s.Migrate(true); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	loc, err := localization.NewLocalizer()
	if err != nil {
		log.Fatalf("Failed to load translations: %v", err)
	}

	dec := decoder.New(time.Now)
	profiles := profile.NewService(s, setupBlobs(ctx, cfg), dec)
	authService := auth.NewService(s, profiles, auth.LogMailer{},
		auth.NewTokenManager(cfg.JWTSecret, config.AccessTokenTTL), auth.NewPasswordHasher())

	// 2. Ініціалізація Chat Hub
	hub := chathub.NewHub(chathub.SessionDeps{
		Store:     s,
		Decoder:   dec,
		Sender:    messagelog.NewSender(s, profiles),
		Presence:  presence.NewWriter(s, nil),
		Notifier:  setupNotifier(cfg),
		Localizer: loc,
		Rooms:     s,
		Debounce:  cfg.TypingDebounce,
	})
	go hub.Run(ctx) // Головний диспетчер

	// 3. Налаштування Gin та роутингу
	r := gin.Default()
	h := handler.NewHandler(hub, authService, profiles, loc)
	h.Register(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()
	log.Printf("INFO: Listening on %s", cfg.HTTPAddr)

	<-ctx.Done()
	log.Println("INFO: Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.TeardownWriteTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARNING: HTTP shutdown: %v", err)
	}
	<-hub.Done()
}
