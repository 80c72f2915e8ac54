package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/match-ticket-reservation/internal/config"
	"github.com/iliyamo/match-ticket-reservation/internal/database"
	"github.com/iliyamo/match-ticket-reservation/internal/handler"
	"github.com/iliyamo/match-ticket-reservation/internal/middleware"
	"github.com/iliyamo/match-ticket-reservation/internal/queue"
	"github.com/iliyamo/match-ticket-reservation/internal/repository"
	"github.com/iliyamo/match-ticket-reservation/internal/router"
	"github.com/iliyamo/match-ticket-reservation/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()
	log := newLogger(cfg)

	db, err := database.Open(database.Options{
		User:            cfg.DBUser,
		Pass:            cfg.DBPass,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		LockWaitTimeout: cfg.LockWaitTimeout,
	})
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = database.Migrate(migrateCtx, db)
	cancelMigrate()
	if err != nil {
		log.WithError(err).Fatal("migrate database")
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig(), log)
	if rdb != nil {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()
	amqpCfg := config.LoadAMQPConfig()

	opts := []service.Option{service.WithLogger(log)}
	if amqpCfg.Enabled {
		opts = append(opts, service.WithPublisher(queue.NewPublisher(amqpCfg.URL, log)))
	}
	core := service.NewReservationService(
		repository.NewTxRunner(db),
		repository.NewMatchRepo(db),
		repository.NewReservationRepo(db),
		opts...,
	)

	var invalidator handler.Invalidator
	if ci := middleware.NewCacheInvalidator(cacheCfg, rdb, log); ci != nil {
		invalidator = ci
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID(), middleware.Logger(log))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e,
		handler.NewAuthHandler(cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db), log),
		cfg.JWTSecret)
	router.RegisterMatches(e,
		handler.NewMatchHandler(core, invalidator),
		cfg.JWTSecret,
		middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterReservations(e,
		handler.NewReservationHandler(core, invalidator),
		cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if amqpCfg.Enabled && amqpCfg.ConsumerEnabled {
		consumer := queue.NewConsumer(amqpCfg.URL, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("reservation consumer stopped")
			}
		}()
	}

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown")
	}
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if cfg.LogFormat == "json" || (cfg.LogFormat == "" && cfg.IsProd()) {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
