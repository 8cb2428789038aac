package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"bujo/internal/api"
	"bujo/internal/config"
	"bujo/internal/repository"
	"bujo/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := log.New(logOutput(cfg.LogFile), "", log.LstdFlags)

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	contextRepo := repository.NewContextRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	daylogRepo := repository.NewDayLogRepository(db)
	templateRepo := repository.NewTemplateRepository(db)

	daylogSvc := service.NewDayLogService(daylogRepo, taskRepo, contextRepo, logger)
	recurrenceSvc := service.NewRecurrenceService(taskRepo, logger)
	taskSvc := service.NewTaskService(taskRepo, contextRepo, daylogSvc, recurrenceSvc, logger)
	contextSvc := service.NewContextService(contextRepo)
	templateSvc := service.NewTemplateService(templateRepo, taskRepo, contextRepo, daylogSvc)
	syncSvc := service.NewSyncService(taskRepo, contextRepo, daylogRepo, templateRepo)
	settingsSvc := service.NewSettingsService(userRepo)

	auth := api.NewTokenAuthenticator(userRepo)
	server := api.NewServer(auth, taskSvc, contextSvc, daylogSvc, templateSvc, syncSvc, settingsSvc, logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	}()

	logger.Printf("listening on %s", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server stopped with error: %v", err)
	}
	logger.Println("Shutdown complete.")
}

// logOutput tees logs into a rotating file when LOG_FILE is set.
func logOutput(path string) io.Writer {
	if path == "" {
		return os.Stderr
	}
	return io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	})
}
