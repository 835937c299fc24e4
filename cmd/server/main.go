package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"accounts/internal/config"
	apphttp "accounts/internal/http"
	"accounts/internal/repository"
	"accounts/internal/repository/sqlite"
	"accounts/internal/service"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if strings.TrimSpace(cfg.Admin.Secret) == "" {
		logger.Warn("admin secret is not set, superuser endpoint is disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	userService := service.NewUserService(userRepo)

	if err := bootstrapSuperuser(ctx, userService, cfg, logger); err != nil {
		logger.Fatalf("bootstrap superuser: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(userService, cfg.Admin.Secret, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

// bootstrapSuperuser creates the configured admin account once.
func bootstrapSuperuser(ctx context.Context, users service.UserService, cfg config.Config, logger *logrus.Logger) error {
	if strings.TrimSpace(cfg.Admin.Email) == "" {
		return nil
	}

	user, err := users.CreateSuperuser(ctx, cfg.Admin.Email, cfg.Admin.Password)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			logger.Infof("superuser %s already exists", cfg.Admin.Email)
			return nil
		}
		return err
	}
	logger.WithField("user_id", user.ID).Infof("created superuser %s", user.Email)
	return nil
}
