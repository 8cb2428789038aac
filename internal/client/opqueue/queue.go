// Package opqueue persists mutations made while the server is
// unreachable, in the order they happened, until a sync cycle replays
// them.
package opqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSynced  Status = "synced"
	StatusFailed  Status = "failed"
)

// PendingOperation is one queued API mutation. Endpoint and Method
// describe the request to replay; Body is its JSON payload.
type PendingOperation struct {
	ID        uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	Type      string          `gorm:"not null" json:"type"`
	Endpoint  string          `gorm:"not null" json:"endpoint"`
	Method    string          `gorm:"not null" json:"method"`
	Body      json.RawMessage `json:"body"`
	Timestamp int64           `gorm:"index;not null" json:"timestamp"`
	Status    Status          `gorm:"index;not null;default:pending" json:"status"`
	LastError string          `json:"lastError,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Queue is the durable operation queue. Enqueue timestamps are strictly
// monotonic so replay order is total even when two operations land in
// the same millisecond.
type Queue struct {
	db *gorm.DB

	mu     sync.Mutex
	lastTS int64
}

func NewQueue(db *gorm.DB) *Queue {
	return &Queue{db: db}
}

func (q *Queue) Enqueue(ctx context.Context, opType, endpoint, method string, body interface{}) (*PendingOperation, error) {
	var raw json.RawMessage
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode operation body: %w", err)
		}
		raw = encoded
	}

	op := &PendingOperation{
		Type:      opType,
		Endpoint:  endpoint,
		Method:    method,
		Body:      raw,
		Timestamp: q.nextTimestamp(),
		Status:    StatusPending,
	}
	if err := q.db.WithContext(ctx).Create(op).Error; err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", opType, err)
	}
	return op, nil
}

func (q *Queue) nextTimestamp() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	ts := time.Now().UnixMilli()
	if ts <= q.lastTS {
		ts = q.lastTS + 1
	}
	q.lastTS = ts
	return ts
}

// Pending returns the queued operations oldest first.
func (q *Queue) Pending(ctx context.Context) ([]PendingOperation, error) {
	var ops []PendingOperation
	err := q.db.WithContext(ctx).
		Where("status = ?", StatusPending).
		Order("timestamp ASC, id ASC").
		Find(&ops).Error
	if err != nil {
		return nil, fmt.Errorf("list pending operations: %w", err)
	}
	return ops, nil
}

func (q *Queue) PendingCount(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.WithContext(ctx).Model(&PendingOperation{}).
		Where("status = ?", StatusPending).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count pending operations: %w", err)
	}
	return count, nil
}

func (q *Queue) MarkSynced(ctx context.Context, id uint) error {
	return q.db.WithContext(ctx).Model(&PendingOperation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": StatusSynced, "last_error": ""}).Error
}

func (q *Queue) MarkFailed(ctx context.Context, id uint, reason string) error {
	return q.db.WithContext(ctx).Model(&PendingOperation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": StatusFailed, "last_error": reason}).Error
}

// PurgeSyncedBefore drops synced operations older than the cutoff.
// Pending and failed operations are never purged.
func (q *Queue) PurgeSyncedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := q.db.WithContext(ctx).
		Where("status = ? AND timestamp < ?", StatusSynced, cutoff.UnixMilli()).
		Delete(&PendingOperation{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge synced operations: %w", res.Error)
	}
	return res.RowsAffected, nil
}
