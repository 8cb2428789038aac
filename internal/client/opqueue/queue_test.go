package opqueue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "queue.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&PendingOperation{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewQueue(db)
}

func TestEnqueue_TimestampsAreStrictlyIncreasing(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		op, err := q.Enqueue(ctx, "CREATE_TASK", "/api/tasks", "POST", map[string]string{"title": "x"})
		if err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
		if op.Timestamp <= last {
			t.Errorf("timestamp %d not greater than previous %d", op.Timestamp, last)
		}
		last = op.Timestamp
	}
}

func TestPending_ReturnsOldestFirst(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	first, err := q.Enqueue(ctx, "CREATE_TASK", "/api/tasks", "POST", nil)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	second, err := q.Enqueue(ctx, "UPDATE_TASK", "/api/tasks/abc", "PATCH", nil)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ops, err := q.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("expected 2 pending ops, got %d", len(ops))
	}
	if ops[0].ID != first.ID || ops[1].ID != second.ID {
		t.Errorf("pending order = [%d %d], want [%d %d]", ops[0].ID, ops[1].ID, first.ID, second.ID)
	}

	count, err := q.PendingCount(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("pending count = %d, want 2", count)
	}
}

func TestMarkSyncedAndFailed(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	ok, err := q.Enqueue(ctx, "CREATE_TASK", "/api/tasks", "POST", nil)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	bad, err := q.Enqueue(ctx, "DELETE_TASK", "/api/tasks/gone", "DELETE", nil)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := q.MarkSynced(ctx, ok.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := q.MarkFailed(ctx, bad.ID, "server returned 404"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	ops, err := q.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(ops) != 0 {
		t.Errorf("expected empty pending queue, got %d ops", len(ops))
	}
}

func TestPurgeSyncedBefore_KeepsPendingAndFailed(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	synced, err := q.Enqueue(ctx, "CREATE_TASK", "/api/tasks", "POST", nil)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.Enqueue(ctx, "UPDATE_TASK", "/api/tasks/abc", "PATCH", nil); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	failed, err := q.Enqueue(ctx, "DELETE_TASK", "/api/tasks/gone", "DELETE", nil)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := q.MarkSynced(ctx, synced.ID); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := q.MarkFailed(ctx, failed.ID, "rejected"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	purged, err := q.PurgeSyncedBefore(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged %d rows, want 1", purged)
	}

	var remaining int64
	if err := q.db.Model(&PendingOperation{}).Count(&remaining).Error; err != nil {
		t.Fatalf("count remaining: %v", err)
	}
	if remaining != 2 {
		t.Errorf("remaining rows = %d, want pending and failed kept", remaining)
	}
}
