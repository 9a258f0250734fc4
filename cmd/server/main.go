package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"hrm/config"
	"hrm/internal/cache"
	"hrm/internal/database"
	"hrm/internal/logger"
	"hrm/internal/notify"
	"hrm/internal/router"
	"hrm/internal/scheduler"
	"hrm/internal/service"
	"hrm/pkg/cloudinary"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	if err := database.Seed(db, &cfg.Bootstrap, log); err != nil {
		log.Fatal("seed", zap.Error(err))
	}

	deps := router.Deps{Log: log}

	rdb, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	var locker cache.Locker = cache.LocalLocker{}
	if rdb != nil {
		defer rdb.Close()
		deps.Revocations = cache.NewRedisRevocations(rdb)
		locker = cache.NewRedisLocker(rdb)
		log.Info("redis connected", zap.String("address", cfg.Redis.Address))
	} else {
		log.Info("redis disabled: sessions are revoked in memory and the queue pump runs unlocked")
	}

	cloud, err := cloudinary.NewClientFromParams(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret)
	if err != nil {
		log.Fatal("cloudinary", zap.Error(err))
	}
	if cloud != nil {
		deps.Cloud = cloud
	}

	mailer, err := notify.NewMailer(ctx, cfg)
	if err != nil {
		log.Fatal("mailer", zap.Error(err))
	}
	if mailer != nil {
		deps.Mailer = mailer
		log.Info("email delivery enabled", zap.String("transport", mailer.Name()), zap.Bool("configured", mailer.Configured()))
	} else {
		log.Info("email delivery disabled: set MAIL_TRANSPORT to smtp or ses to enable")
	}

	if fcm := service.NewFCMService(ctx, cfg.Firebase.ServiceAccountPath, log); fcm != nil {
		deps.Push = fcm
		log.Info("push notifications enabled")
	} else {
		log.Info("push notifications disabled: set FIREBASE_SERVICE_ACCOUNT_PATH to enable")
	}

	app := router.Setup(cfg, db, deps)

	var pump *scheduler.QueuePump
	if cfg.Queue.Enabled {
		pump = scheduler.NewQueuePump(app.Queue, locker, cfg.Queue, log.Named("pump"))
		if err := pump.Start(); err != nil {
			log.Fatal("queue pump", zap.Error(err))
		}
	}

	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				app.Limiter.Cleanup()
			}
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.Engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if pump != nil {
		pump.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("server stopped")
}
