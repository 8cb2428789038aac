// Package sync drives the agent's synchronization cycle: replay queued
// mutations, pull server changes into the mirror, and track online
// state for subscribers.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	stdsync "sync"
	"sync/atomic"
	"time"

	"bujo/internal/client/mirror"
	"bujo/internal/client/opqueue"
	"bujo/internal/client/transport"
)

// State is a snapshot of the coordinator for UI consumers.
type State struct {
	IsOnline               bool  `json:"isOnline"`
	IsSyncing              bool  `json:"isSyncing"`
	PendingOperationsCount int64 `json:"pendingOperationsCount"`
	LastSyncTimestamp      int64 `json:"lastSyncTimestamp"`
}

// Result reports how Submit handled a mutation: either the server
// confirmed it immediately, or it was queued for later replay.
type Result struct {
	Confirmed []byte
	QueuedID  uint
}

// Queued reports whether the mutation went to the pending queue instead
// of the server.
func (r *Result) Queued() bool { return r.QueuedID != 0 }

// Coordinator owns the sync cycle. At most one cycle runs at a time;
// overlapping triggers are dropped.
type Coordinator struct {
	client    *transport.Client
	mirror    *mirror.Store
	queue     *opqueue.Queue
	retention time.Duration
	logger    *log.Logger

	syncing atomic.Bool

	mu    stdsync.Mutex
	state State
	subs  []func(State)
}

func NewCoordinator(client *transport.Client, store *mirror.Store, queue *opqueue.Queue, retention time.Duration, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	if retention <= 0 {
		retention = time.Hour
	}
	return &Coordinator{
		client:    client,
		mirror:    store,
		queue:     queue,
		retention: retention,
		logger:    logger,
		state:     State{IsOnline: true},
	}
}

// Subscribe registers a callback invoked on every state change. The
// current state is delivered immediately.
func (c *Coordinator) Subscribe(fn func(State)) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	current := c.state
	c.mu.Unlock()
	fn(current)
}

// CurrentState returns a snapshot of the coordinator state.
func (c *Coordinator) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) updateState(mutate func(*State)) {
	c.mu.Lock()
	mutate(&c.state)
	snapshot := c.state
	subs := make([]func(State), len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
}

// SetOnline records a connectivity change. Coming back online triggers
// a sync cycle.
func (c *Coordinator) SetOnline(ctx context.Context, online bool) {
	c.mu.Lock()
	was := c.state.IsOnline
	c.mu.Unlock()

	if was == online {
		return
	}
	c.updateState(func(s *State) { s.IsOnline = online })

	if online {
		if err := c.Sync(ctx); err != nil {
			c.logger.Printf("WARNING: sync after reconnect: %v", err)
		}
	}
}

// Submit performs a mutation online when possible and queues it when
// the server is unreachable. A server rejection is returned to the
// caller and never queued; replaying a rejected request verbatim would
// fail again.
func (c *Coordinator) Submit(ctx context.Context, opType, endpoint, method string, body []byte) (*Result, error) {
	if c.CurrentState().IsOnline {
		payload, err := c.client.Do(ctx, method, endpoint, body)
		if err == nil {
			return &Result{Confirmed: payload}, nil
		}

		var netErr *transport.NetworkError
		if !errors.As(err, &netErr) {
			return nil, err
		}
		c.logger.Printf("WARNING: %s %s unreachable, queueing: %v", method, endpoint, netErr)
		c.SetOnline(ctx, false)
	}

	op, err := c.queue.Enqueue(ctx, opType, endpoint, method, rawBody(body))
	if err != nil {
		return nil, err
	}
	c.refreshPendingCount(ctx)
	return &Result{QueuedID: op.ID}, nil
}

func rawBody(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	return json.RawMessage(body)
}

// Sync runs one full cycle: drain the queue, then pull. Re-entrant
// calls while a cycle is in flight are no-ops, and so are calls while
// the coordinator is offline; recovery goes through Ping or SetOnline.
func (c *Coordinator) Sync(ctx context.Context) error {
	if !c.syncing.CompareAndSwap(false, true) {
		return nil
	}
	defer c.syncing.Store(false)

	if !c.CurrentState().IsOnline {
		return nil
	}

	c.updateState(func(s *State) { s.IsSyncing = true })
	defer c.updateState(func(s *State) { s.IsSyncing = false })

	if err := c.drain(ctx); err != nil {
		return err
	}
	serverTime, err := c.pull(ctx)
	if err != nil {
		return err
	}

	if _, err := c.queue.PurgeSyncedBefore(ctx, time.Now().Add(-c.retention)); err != nil {
		c.logger.Printf("WARNING: purge synced operations: %v", err)
	}

	c.updateState(func(s *State) {
		s.IsOnline = true
		s.LastSyncTimestamp = serverTime
	})
	c.refreshPendingCount(ctx)
	return nil
}

// drain replays pending operations oldest first. A network failure
// stops the drain and flips the coordinator offline, leaving the rest
// of the queue intact. A server rejection marks that one operation
// failed and moves on.
func (c *Coordinator) drain(ctx context.Context) error {
	ops, err := c.queue.Pending(ctx)
	if err != nil {
		return err
	}

	for _, op := range ops {
		_, err := c.client.Do(ctx, op.Method, op.Endpoint, op.Body)
		if err == nil {
			if err := c.queue.MarkSynced(ctx, op.ID); err != nil {
				return fmt.Errorf("mark operation %d synced: %w", op.ID, err)
			}
			continue
		}

		var netErr *transport.NetworkError
		if errors.As(err, &netErr) {
			c.updateState(func(s *State) { s.IsOnline = false })
			c.refreshPendingCount(ctx)
			return fmt.Errorf("replay operation %d: %w", op.ID, err)
		}

		var httpErr *transport.HTTPError
		if errors.As(err, &httpErr) {
			c.logger.Printf("WARNING: operation %d (%s %s) rejected with %d: %s",
				op.ID, op.Method, op.Endpoint, httpErr.Status, httpErr.Message)
			if err := c.queue.MarkFailed(ctx, op.ID, httpErr.Error()); err != nil {
				return fmt.Errorf("mark operation %d failed: %w", op.ID, err)
			}
			continue
		}
		return fmt.Errorf("replay operation %d: %w", op.ID, err)
	}
	return nil
}

// pull fetches changes since the mirror watermark and returns the
// server clock from the response. That clock, not the local one, is the
// checkpoint the next pull resumes from.
func (c *Coordinator) pull(ctx context.Context) (int64, error) {
	since, err := c.mirror.LastPulledAt(ctx)
	if err != nil {
		return 0, err
	}

	var set mirror.PullSet
	if err := c.client.Pull(ctx, since, &set); err != nil {
		var netErr *transport.NetworkError
		if errors.As(err, &netErr) {
			c.updateState(func(s *State) { s.IsOnline = false })
		}
		return 0, fmt.Errorf("pull since %d: %w", since, err)
	}

	if err := c.mirror.ApplyPull(ctx, &set); err != nil {
		return 0, err
	}
	return set.Timestamp, nil
}

func (c *Coordinator) refreshPendingCount(ctx context.Context) {
	count, err := c.queue.PendingCount(ctx)
	if err != nil {
		c.logger.Printf("WARNING: count pending operations: %v", err)
		return
	}
	c.updateState(func(s *State) { s.PendingOperationsCount = count })
}

// Ping probes the server with a cheap request and records the result.
// Probing from the current moment keeps the response near empty.
func (c *Coordinator) Ping(ctx context.Context) bool {
	probe := "/api/sync/pull?since=" + strconv.FormatInt(time.Now().UnixMilli(), 10)
	_, err := c.client.Do(ctx, http.MethodGet, probe, nil)
	var netErr *transport.NetworkError
	online := !errors.As(err, &netErr)
	c.SetOnline(ctx, online)
	return online
}
