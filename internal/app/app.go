package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/aidar/scim-provisioning/internal/audit"
	"github.com/aidar/scim-provisioning/internal/config"
	"github.com/aidar/scim-provisioning/internal/handler"
	"github.com/aidar/scim-provisioning/internal/lock"
	"github.com/aidar/scim-provisioning/internal/middleware"
	"github.com/aidar/scim-provisioning/internal/repository/postgres"
	"github.com/aidar/scim-provisioning/internal/service"
	"github.com/aidar/scim-provisioning/internal/tasks"
)

// App представляет приложение со всеми зависимостями
type App struct {
	config      *config.Config
	db          *pgxpool.Pool
	redisClient *redis.Client
	asynqClient *asynq.Client
	server      *http.Server
	logger      *slog.Logger
}

// New создает новый экземпляр приложения
func New(cfg *config.Config) (*App, error) {
	// Инициализируем структурированный логгер (JSON формат)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	app := &App{
		config: cfg,
		logger: logger,
	}

	return app, nil
}

// Initialize инициализирует все компоненты приложения
func (a *App) Initialize(ctx context.Context) error {
	// Подключаемся к базе данных
	if err := a.connectDB(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Подключаемся к Redis (распределенные блокировки и очередь задач)
	if err := a.connectRedis(ctx); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	// Настраиваем HTTP сервер и роутинг
	a.setupServer()

	a.logger.Info("Application initialized successfully")
	return nil
}

// connectDB устанавливает подключение к PostgreSQL с connection pool
func (a *App) connectDB(ctx context.Context) error {
	poolConfig, err := pgxpool.ParseConfig(a.config.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to parse database config: %w", err)
	}

	// Настраиваем размеры connection pool
	poolConfig.MaxConns = a.config.Database.MaxConns
	poolConfig.MinConns = a.config.Database.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Проверяем подключение к БД
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.db = pool
	a.logger.Info("Connected to database")
	return nil
}

// connectRedis устанавливает подключение к Redis
func (a *App) connectRedis(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     a.config.Redis.Addr,
		Password: a.config.Redis.Password,
		DB:       a.config.Redis.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	a.redisClient = client
	a.asynqClient = asynq.NewClient(asynq.RedisClientOpt{
		Addr:     a.config.Redis.Addr,
		Password: a.config.Redis.Password,
		DB:       a.config.Redis.DB,
	})

	a.logger.Info("Connected to redis")
	return nil
}

// setupServer инициализирует HTTP роутер и обработчики
func (a *App) setupServer() {
	// Инициализируем слой репозиториев (работа с БД)
	memberRepo := postgres.NewMembershipRepository(a.db)
	teamRepo := postgres.NewTeamRepository(a.db)

	// Распределенные блокировки, аудит и отложенное удаление команд
	locker := lock.NewRedisLocker(a.redisClient, lock.RetryPolicy{
		MaxAttempts: a.config.Lock.MaxAttempts,
		Delay:       a.config.Lock.RetryDelay,
	})
	sink := audit.NewLogSink(a.logger)
	scheduler := tasks.NewScheduler(a.asynqClient, a.config.Worker.DeletionDelay)

	// Инициализируем слой сервисов (бизнес-логика)
	memberService := service.NewMemberService(memberRepo, teamRepo, locker, sink, service.MemberConfig{
		DefaultInviteRole: a.config.SCIM.DefaultInviteRole,
		InvitesEnabled:    a.config.SCIM.InvitesEnabled,
		LockTTL:           a.config.Lock.TTL,
	})
	teamService := service.NewTeamService(teamRepo, memberRepo, locker, sink, scheduler, a.config.Lock.TTL)
	authService := service.NewAuthService(a.config.Auth.Secret, a.config.Auth.GetExpiration())

	// Инициализируем HTTP обработчики
	userHandler := handler.NewUserHandler(memberService)
	groupHandler := handler.NewGroupHandler(teamService)

	// Инициализируем middleware для provisioning токенов
	authMiddleware := middleware.AuthMiddleware(authService)

	// Настраиваем роутер
	r := chi.NewRouter()

	// Глобальные middleware (применяются ко всем запросам)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// Health check для мониторинга
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			a.logger.Error("Failed to write health check response", "error", err)
		}
	})

	// SCIM эндпоинты (требуют provisioning токен в заголовке Authorization)
	r.Route("/scim/v2", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Get("/Users", userHandler.ListUsers)
		r.Post("/Users", userHandler.CreateUser)
		r.Get("/Users/{id}", userHandler.GetUser)
		r.Patch("/Users/{id}", userHandler.PatchUser)
		r.Delete("/Users/{id}", userHandler.DeleteUser)

		r.Get("/Groups", groupHandler.ListGroups)
		r.Post("/Groups", groupHandler.CreateGroup)
		r.Get("/Groups/{id}", groupHandler.GetGroup)
		r.Patch("/Groups/{id}", groupHandler.PatchGroup)
		r.Delete("/Groups/{id}", groupHandler.DeleteGroup)
	})

	// Создаем HTTP сервер с настройками таймаутов
	addr := fmt.Sprintf("%s:%s", a.config.Server.Host, a.config.Server.Port)
	a.server = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	a.logger.Info("HTTP server configured", "addr", addr)
}

// Run запускает HTTP сервер
func (a *App) Run() error {
	a.logger.Info("Starting HTTP server", "addr", a.server.Addr)
	return a.server.ListenAndServe()
}

// Shutdown корректно останавливает приложение
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application")

	// Останавливаем HTTP сервер (ждем завершения текущих запросов)
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	// Закрываем клиент очереди задач
	if a.asynqClient != nil {
		if err := a.asynqClient.Close(); err != nil {
			a.logger.Error("Failed to close asynq client", "error", err)
		}
	}

	// Закрываем подключение к Redis
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("Failed to close redis client", "error", err)
		}
	}

	// Закрываем подключения к базе данных
	if a.db != nil {
		a.db.Close()
	}

	a.logger.Info("Application stopped gracefully")
	return nil
}
