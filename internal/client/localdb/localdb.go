// Package localdb opens the agent's on-disk database: the mirrored
// server tables plus the pending operation queue.
package localdb

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bujo/internal/client/mirror"
	"bujo/internal/client/opqueue"
	"bujo/internal/model"
)

// Open connects to the local sqlite database and migrates the schema.
func Open(dsn string) (*gorm.DB, error) {
	if err := ensureDir(dsn); err != nil {
		return nil, err
	}

	gormLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open local database: %w", err)
	}

	if err := db.AutoMigrate(
		&model.Context{},
		&model.Task{},
		&model.Subtask{},
		&model.TaskTemplate{},
		&model.TaskTemplateItem{},
		&model.DayLog{},
		&model.DayLogEntry{},
		&mirror.SyncState{},
		&opqueue.PendingOperation{},
	); err != nil {
		return nil, fmt.Errorf("migrate local database: %w", err)
	}
	return db, nil
}

func ensureDir(dsn string) error {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" || strings.HasPrefix(path, ":") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}
