package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"task-planner/internal/bot"
	"task-planner/internal/config"
	"task-planner/internal/lock"
	"task-planner/internal/logger"
	"task-planner/internal/model"
	"task-planner/internal/repository"
	"task-planner/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.Environment, cfg.LogFile)

	db, err := repository.NewDB(cfg.DatabaseURL, log)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.RedisURL != "" {
		redisLocker, err := lock.NewRedisLocker(ctx, cfg.RedisURL, cfg.LockTTL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisLocker.Close()
		locker = redisLocker
		log.Info("using redis day lock")
	}

	templateRepo := repository.NewTemplateRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	tagRepo := repository.NewTagRepository(db)
	dayRepo := repository.NewDayRepository(db)
	settingRepo := repository.NewSettingRepository(db)
	tx := repository.NewTransactor(db)

	instantiator := service.NewTaskInstantiator(taskRepo, tagRepo)
	applicator := service.NewScheduleApplicator(scheduleRepo, templateRepo, instantiator, tx, locker, log.WithField("component", "applicator"))
	daySvc := service.NewDayService(dayRepo, taskRepo, settingRepo, applicator)
	templateSvc := service.NewTemplateService(templateRepo, scheduleRepo, tagRepo, instantiator, tx)

	if cfg.ApplyAt != "" {
		scheduler := service.NewSchedulerService(cfg.Location, log)
		entryID, err := scheduler.ScheduleDaily("daily-apply", cfg.ApplyAt, time.Minute, func(ctx context.Context) error {
			today := model.DateOf(time.Now().In(cfg.Location))
			if _, err := daySvc.Resolve(ctx, today); err != nil {
				return fmt.Errorf("resolve %s: %w", today, err)
			}
			return nil
		})
		if err != nil {
			log.Fatalf("schedule daily apply: %v", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.WithField("next_run", scheduler.NextRun(entryID).Format(time.RFC3339)).Info("daily apply armed")
	}

	if cfg.TelegramToken == "" {
		log.Info("TELEGRAM_TOKEN not set, running scheduler only")
		<-ctx.Done()
		log.Info("shutdown complete")
		return
	}

	telegramBot, err := bot.New(cfg.TelegramToken, templateSvc, daySvc, cfg.Location, log)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	log.Info("task planner bot started")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("bot stopped with error: %v", err)
	}
	log.Info("shutdown complete")
}
