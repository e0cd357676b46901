package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nexodrive/internal/auth"
	"nexodrive/internal/config"
	"nexodrive/internal/handler"
	"nexodrive/internal/repository"
	"nexodrive/internal/service"
	"nexodrive/internal/service/s3"
	"nexodrive/pkg/logger"
)

func connectWithRetry(dsn string, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	var db *sqlx.DB
	var err error

	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", databaseURL)
		if err == nil {
			break
		}
		log.Printf("Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
	}

	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Printf("Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func main() {
	// Загружаем конфигурации
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(appConfig.Server.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	// Подключаемся к базе данных
	db, err := connectWithRetry(appConfig.Database.GetDSN(), 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Подключаемся к Redis для ленты активности
	redisClient := redis.NewClient(&redis.Options{
		Addr:     appConfig.Redis.Addr,
		Password: appConfig.Redis.Password,
		DB:       appConfig.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to ping redis: %v", err)
	}

	// Инициализация S3 клиента
	s3Config, err := s3.NewConfig(".s3.env")
	if err != nil {
		log.Fatalf("Failed to load S3 config: %v", err)
	}

	s3Client, err := s3.NewClient(s3Config)
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}

	// Настройка выпуска и проверки токенов сессии
	authConfig, err := auth.NewConfig(".auth.env")
	if err != nil {
		log.Fatalf("Failed to load auth config: %v", err)
	}
	auth.Init(authConfig)

	// Инициализация репозиториев
	accountRepo := repository.NewAccountRepository(db)
	fileRepo := repository.NewFileRepository(db)
	trashRepo := repository.NewTrashRepository(db)
	activityRepo := repository.NewActivityRepository(redisClient)

	// Инициализация сервисов
	retention := time.Duration(appConfig.Server.TrashRetentionDays) * 24 * time.Hour
	quotaService := service.NewQuotaService(accountRepo, activityRepo, zlog)
	previewService := service.NewPreviewService(s3Client, zlog)
	fileService := service.NewFileService(fileRepo, quotaService, s3Client, activityRepo, previewService, zlog)
	trashService := service.NewTrashService(trashRepo, fileRepo, s3Client, quotaService, activityRepo, retention, zlog)
	reportService := service.NewReportService(fileRepo, activityRepo)
	accountService := service.NewAccountService(accountRepo, zlog)

	// Инициализация хендлеров
	fileHandler := handler.NewFileHandler(fileService, previewService)
	trashHandler := handler.NewTrashHandler(trashService)
	quotaHandler := handler.NewQuotaHandler(quotaService)
	reportHandler := handler.NewReportHandler(reportService)
	accountHandler := handler.NewAccountHandler(accountService)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// HTTP маршруты
	r.Route("/v1", func(r chi.Router) {
		r.Post("/accounts/register", accountHandler.Register)
		r.Post("/accounts/login", accountHandler.Login)
		r.Get("/accounts/me", accountHandler.Me)

		r.Post("/files", fileHandler.UploadFile)
		r.Get("/files", fileHandler.ListFiles)

		r.Route("/files/{uuid}", func(r chi.Router) {
			r.Get("/", fileHandler.DownloadFile)
			r.Put("/rename", fileHandler.RenameFile)
			r.Delete("/", fileHandler.DeleteFile)
			r.Get("/preview", fileHandler.GetPreview)
			r.Get("/versions", fileHandler.GetFileVersions)
			r.Delete("/versions/{version}", fileHandler.DeleteVersion)
		})

		r.Route("/trash", func(r chi.Router) {
			r.Get("/", trashHandler.GetTrashItems)
			r.Post("/empty", trashHandler.EmptyTrash)
			r.Post("/restore/{uuid}", trashHandler.RestoreFromTrash)
			r.Delete("/{uuid}", trashHandler.DeletePermanently)
		})

		r.Route("/quota", func(r chi.Router) {
			r.Get("/", quotaHandler.GetUsage)
			r.Put("/limit", quotaHandler.UpdateLimit)
			r.Post("/recalculate", quotaHandler.Recalculate)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/types", reportHandler.GetTypeBreakdown)
			r.Get("/activity", reportHandler.GetRecentActivity)
		})
	})

	// Создаем HTTP сервер
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	// Канал для сигналов завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Запускаем HTTP сервер
	go func() {
		zlog.Info("starting HTTP server", zap.String("port", appConfig.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Запускаем периодическую очистку корзины
	cleanupTicker := time.NewTicker(1 * time.Hour)
	cleanupDone := make(chan struct{})
	go func() {
		for {
			select {
			case <-cleanupTicker.C:
				if err := trashService.AutoCleanup(context.Background()); err != nil {
					zlog.Warn("trash cleanup failed", zap.Error(err))
				}
			case <-cleanupDone:
				return
			}
		}
	}()

	<-quit
	zlog.Info("shutting down server")

	cleanupTicker.Stop()
	close(cleanupDone)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}

	zlog.Info("server stopped")
}
