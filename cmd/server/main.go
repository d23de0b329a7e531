package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/upscpath/prep-platform/internal/config"
	"github.com/upscpath/prep-platform/internal/db"
	httpHandlers "github.com/upscpath/prep-platform/internal/http/handlers"
	httpRouter "github.com/upscpath/prep-platform/internal/http/router"
	"github.com/upscpath/prep-platform/internal/logger"
	"github.com/upscpath/prep-platform/internal/repository"
	"github.com/upscpath/prep-platform/internal/service"
	"github.com/upscpath/prep-platform/internal/storage"
	"github.com/upscpath/prep-platform/internal/ws"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	// Инициализация логгера
	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	// Вспомогательные сервисы.
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	avatarStorage, err := storage.NewAvatarStorage(cfg.AvatarStoragePath, cfg.MaxUploadSizeMB)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	// Репозитории.
	userRepo := repository.NewUserRepository(dbConn)
	verificationRepo := repository.NewVerificationRepository(dbConn)
	examRepo := repository.NewExamRepository(dbConn)

	// Сервисы.
	authService := service.NewAuthService(
		userRepo,
		verificationRepo,
		tokenManager,
		service.LogEmailSender{},
		service.LogSMSSender{},
		service.FlowTimings{OTPTTL: cfg.SignupOTPTTL, ResendCooldown: cfg.SignupResendCooldown},
		service.FlowTimings{OTPTTL: cfg.ResetOTPTTL, ResendCooldown: cfg.ResetResendCooldown},
	)
	examService := service.NewExamService(examRepo, service.NewCacheService(), cfg.DashboardCacheTTL)

	// Вебсокеты: подписчики получают статус сессии верификации.
	hub := ws.NewHub(ctx)
	go hub.Run()
	authService.SetStatusNotifier(hub)

	// HTTP хэндлеры.
	authHandler := httpHandlers.NewAuthHandler(authService)
	examHandler := httpHandlers.NewExamHandler(examService)
	profileHandler := httpHandlers.NewProfileHandler(userRepo, avatarStorage)
	wsHandler := httpHandlers.NewWSHandler(hub, authService)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	// Роутер.
	engine := httpRouter.SetupRouter(cfg, authHandler, examHandler, profileHandler, wsHandler, healthHandler, authService)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
