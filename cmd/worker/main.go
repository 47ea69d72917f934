package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aidar/scim-provisioning/internal/config"
	"github.com/aidar/scim-provisioning/internal/repository/postgres"
	"github.com/aidar/scim-provisioning/internal/tasks"
)

func main() {
	// Загружаем конфигурацию из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Подключаемся к базе данных
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Не удалось создать connection pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Не удалось подключиться к БД: %v", err)
	}

	// Настраиваем сервер очереди задач
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				tasks.QueueDefault: 1,
			},
		},
	)

	// Регистрируем обработчики задач
	worker := tasks.NewWorker(postgres.NewTeamRepository(pool), logger)
	mux := asynq.NewServeMux()
	worker.Register(mux)

	logger.Info("Starting worker", "concurrency", cfg.Worker.Concurrency)

	// asynq.Server сам обрабатывает SIGINT/SIGTERM и корректно завершается
	if err := srv.Run(mux); err != nil {
		log.Fatalf("Ошибка воркера: %v", err)
	}
}
