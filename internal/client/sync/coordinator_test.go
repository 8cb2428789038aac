package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bujo/internal/client/localdb"
	"bujo/internal/client/mirror"
	"bujo/internal/client/opqueue"
	"bujo/internal/client/transport"
	"bujo/internal/model"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body interface{}) *http.Response {
	encoded, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(encoded)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func emptyPull() *http.Response {
	return jsonResponse(http.StatusOK, mirror.PullSet{Timestamp: time.Now().UnixMilli()})
}

type harness struct {
	coordinator *Coordinator
	queue       *opqueue.Queue
	store       *mirror.Store
}

func newHarness(t *testing.T, rt roundTripFunc) *harness {
	t.Helper()

	db, err := localdb.Open(filepath.Join(t.TempDir(), "agent.db"))
	if err != nil {
		t.Fatalf("open local db: %v", err)
	}

	client := transport.NewClient("http://planner.test", "token", &http.Client{Transport: rt})
	store := mirror.NewStore(db)
	queue := opqueue.NewQueue(db)
	return &harness{
		coordinator: NewCoordinator(client, store, queue, time.Hour, nil),
		queue:       queue,
		store:       store,
	}
}

func TestSync_NetworkFailureHaltsDrain(t *testing.T) {
	ctx := context.Background()

	mutations := 0
	rt := func(req *http.Request) (*http.Response, error) {
		if req.Method == http.MethodPost {
			mutations++
			if mutations >= 2 {
				return nil, errors.New("connection refused")
			}
			return jsonResponse(http.StatusCreated, map[string]string{"id": "t1"}), nil
		}
		return emptyPull(), nil
	}
	h := newHarness(t, rt)

	for i := 0; i < 3; i++ {
		if _, err := h.queue.Enqueue(ctx, "CREATE_TASK", "/api/tasks", "POST",
			map[string]string{"title": fmt.Sprintf("task %d", i)}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	err := h.coordinator.Sync(ctx)
	if err == nil {
		t.Fatal("expected sync to fail on network error")
	}
	var netErr *transport.NetworkError
	if !errors.As(err, &netErr) {
		t.Errorf("expected NetworkError in chain, got %v", err)
	}

	pending, qerr := h.queue.Pending(ctx)
	if qerr != nil {
		t.Fatalf("pending: %v", qerr)
	}
	if len(pending) != 2 {
		t.Errorf("pending ops = %d, want the two unreplayed ones", len(pending))
	}

	state := h.coordinator.CurrentState()
	if state.IsOnline {
		t.Error("coordinator still online after network failure")
	}
	if state.PendingOperationsCount != 2 {
		t.Errorf("state pending count = %d, want 2", state.PendingOperationsCount)
	}
	if state.IsSyncing {
		t.Error("IsSyncing stuck true after failed cycle")
	}
	if mutations != 2 {
		t.Errorf("replayed %d mutations before halting, want 2", mutations)
	}
}

func TestSync_ServerRejectionSkipsOperation(t *testing.T) {
	ctx := context.Background()

	mutations := 0
	rt := func(req *http.Request) (*http.Response, error) {
		if req.Method == http.MethodPost {
			mutations++
			if mutations == 1 {
				return jsonResponse(http.StatusBadRequest, map[string]string{"error": "Migrations array is required"}), nil
			}
			return jsonResponse(http.StatusCreated, map[string]string{"id": "t2"}), nil
		}
		return emptyPull(), nil
	}
	h := newHarness(t, rt)

	if _, err := h.queue.Enqueue(ctx, "CLOSE_DAY", "/api/daylogs/close", "POST", map[string]string{}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := h.queue.Enqueue(ctx, "CREATE_TASK", "/api/tasks", "POST", map[string]string{"title": "ok"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := h.coordinator.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}

	pending, err := h.queue.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending ops = %d, want 0 after rejection is parked as failed", len(pending))
	}

	state := h.coordinator.CurrentState()
	if !state.IsOnline {
		t.Error("rejection flipped coordinator offline; only network errors should")
	}
	if state.LastSyncTimestamp == 0 {
		t.Error("LastSyncTimestamp not stamped after successful cycle")
	}
}

func TestSync_PullAppliesChangesToMirror(t *testing.T) {
	ctx := context.Background()

	rt := func(req *http.Request) (*http.Response, error) {
		if strings.HasPrefix(req.URL.Path, "/api/sync/pull") {
			return jsonResponse(http.StatusOK, mirror.PullSet{
				Timestamp: 4242,
				Tasks: []model.Task{
					{ID: "task-9", UserID: "user-1", Title: "pulled task", Status: model.StatusBacklog},
				},
			}), nil
		}
		return jsonResponse(http.StatusOK, map[string]string{}), nil
	}
	h := newHarness(t, rt)

	if err := h.coordinator.Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}

	tasks, err := h.store.ListTasks(ctx, "")
	if err != nil {
		t.Fatalf("list mirrored tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "pulled task" {
		t.Errorf("mirror contents = %+v, want the pulled task", tasks)
	}

	watermark, err := h.store.LastPulledAt(ctx)
	if err != nil {
		t.Fatalf("watermark: %v", err)
	}
	if watermark != 4242 {
		t.Errorf("watermark = %d, want server timestamp 4242", watermark)
	}

	// The visible checkpoint comes from the server clock too, never the
	// local one.
	if got := h.coordinator.CurrentState().LastSyncTimestamp; got != 4242 {
		t.Errorf("LastSyncTimestamp = %d, want server timestamp 4242", got)
	}
}

func TestSync_SkipsWhileOffline(t *testing.T) {
	ctx := context.Background()

	calls := 0
	rt := func(req *http.Request) (*http.Response, error) {
		calls++
		return emptyPull(), nil
	}
	h := newHarness(t, rt)

	if _, err := h.queue.Enqueue(ctx, "CREATE_TASK", "/api/tasks", "POST", map[string]string{"title": "stuck"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	h.coordinator.SetOnline(ctx, false)
	if err := h.coordinator.Sync(ctx); err != nil {
		t.Fatalf("offline sync: %v", err)
	}

	if calls != 0 {
		t.Errorf("offline sync made %d network calls, want 0", calls)
	}
	pending, err := h.queue.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending ops = %d, want the untouched queue", len(pending))
	}
}

func TestPing_RecoveryFlipsOnlineAndSyncs(t *testing.T) {
	ctx := context.Background()

	pulls := 0
	rt := func(req *http.Request) (*http.Response, error) {
		if strings.HasPrefix(req.URL.Path, "/api/sync/pull") {
			pulls++
			// The first pull is the probe; the recovery sync that follows
			// legitimately asks since the zero watermark.
			if pulls == 1 {
				if since := req.URL.Query().Get("since"); since == "" || since == "0" {
					t.Errorf("probe since = %q, want a recent clock", since)
				}
			}
		}
		return emptyPull(), nil
	}
	h := newHarness(t, rt)

	h.coordinator.SetOnline(ctx, false)
	if !h.coordinator.Ping(ctx) {
		t.Fatal("ping against a healthy server reported offline")
	}
	if !h.coordinator.CurrentState().IsOnline {
		t.Error("coordinator still offline after successful ping")
	}
	// The probe itself plus the sync the recovery triggered.
	if pulls != 2 {
		t.Errorf("pulls = %d, want probe and recovery sync", pulls)
	}
}

func TestSubmit_QueuesWhenServerUnreachable(t *testing.T) {
	ctx := context.Background()

	calls := 0
	rt := func(req *http.Request) (*http.Response, error) {
		calls++
		return nil, errors.New("no route to host")
	}
	h := newHarness(t, rt)

	body := []byte(`{"title":"offline capture"}`)
	result, err := h.coordinator.Submit(ctx, "CREATE_TASK", "/api/tasks", "POST", body)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Queued() {
		t.Fatal("expected mutation to be queued")
	}

	state := h.coordinator.CurrentState()
	if state.IsOnline {
		t.Error("coordinator still online after unreachable submit")
	}
	if state.PendingOperationsCount != 1 {
		t.Errorf("pending count = %d, want 1", state.PendingOperationsCount)
	}

	// While offline, further submits queue without touching the network.
	callsBefore := calls
	result, err = h.coordinator.Submit(ctx, "CREATE_TASK", "/api/tasks", "POST", body)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if !result.Queued() {
		t.Error("second submit not queued")
	}
	if calls != callsBefore {
		t.Errorf("offline submit made %d network calls", calls-callsBefore)
	}

	ops, err := h.queue.Pending(ctx)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("queued ops = %d, want 2", len(ops))
	}
	if string(ops[0].Body) != string(body) {
		t.Errorf("queued body = %s, want original payload", ops[0].Body)
	}
}

func TestSubmit_ServerRejectionIsReturnedNotQueued(t *testing.T) {
	ctx := context.Background()

	rt := func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, map[string]string{"error": "title is required"}), nil
	}
	h := newHarness(t, rt)

	_, err := h.coordinator.Submit(ctx, "CREATE_TASK", "/api/tasks", "POST", []byte(`{}`))
	var httpErr *transport.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", httpErr.Status)
	}

	count, cerr := h.queue.PendingCount(ctx)
	if cerr != nil {
		t.Fatalf("count: %v", cerr)
	}
	if count != 0 {
		t.Errorf("rejected mutation was queued; pending = %d", count)
	}
}

func TestSetOnline_ReconnectTriggersSync(t *testing.T) {
	ctx := context.Background()

	pulls := 0
	rt := func(req *http.Request) (*http.Response, error) {
		if strings.HasPrefix(req.URL.Path, "/api/sync/pull") {
			pulls++
		}
		return emptyPull(), nil
	}
	h := newHarness(t, rt)

	h.coordinator.SetOnline(ctx, false)
	if h.coordinator.CurrentState().IsOnline {
		t.Fatal("SetOnline(false) did not stick")
	}

	h.coordinator.SetOnline(ctx, true)
	if pulls != 1 {
		t.Errorf("reconnect triggered %d pulls, want 1", pulls)
	}
	if !h.coordinator.CurrentState().IsOnline {
		t.Error("coordinator offline after successful reconnect sync")
	}
}

func TestSubscribe_DeliversStateChanges(t *testing.T) {
	rt := func(req *http.Request) (*http.Response, error) {
		return emptyPull(), nil
	}
	h := newHarness(t, rt)

	var seen []State
	h.coordinator.Subscribe(func(s State) { seen = append(seen, s) })

	if len(seen) != 1 {
		t.Fatalf("expected immediate snapshot, got %d notifications", len(seen))
	}
	if !seen[0].IsOnline {
		t.Error("initial state should be online")
	}

	if err := h.coordinator.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(seen) < 3 {
		t.Errorf("expected syncing on/off notifications, got %d total", len(seen))
	}
	last := seen[len(seen)-1]
	if last.IsSyncing {
		t.Error("final notification still shows syncing")
	}
}
