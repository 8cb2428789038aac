package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"bujo/internal/model"
	"bujo/internal/repository"
	"bujo/internal/service"
)

const testToken = "test-api-token"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	user := &model.User{Email: "api@example.com", Name: "API User", APIToken: testToken}
	if err := userRepo.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	contextRepo := repository.NewContextRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	daylogRepo := repository.NewDayLogRepository(db)
	templateRepo := repository.NewTemplateRepository(db)

	daylogSvc := service.NewDayLogService(daylogRepo, taskRepo, contextRepo, nil)
	recurrenceSvc := service.NewRecurrenceService(taskRepo, nil)
	taskSvc := service.NewTaskService(taskRepo, contextRepo, daylogSvc, recurrenceSvc, nil)
	contextSvc := service.NewContextService(contextRepo)
	templateSvc := service.NewTemplateService(templateRepo, taskRepo, contextRepo, daylogSvc)
	syncSvc := service.NewSyncService(taskRepo, contextRepo, daylogRepo, templateRepo)
	settingsSvc := service.NewSettingsService(userRepo)

	server := NewServer(NewTokenAuthenticator(userRepo), taskSvc, contextSvc, daylogSvc, templateSvc, syncSvc, settingsSvc, nil)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, ts *httptest.Server, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp.StatusCode, payload
}

func TestAuth_MissingOrWrongToken(t *testing.T) {
	ts := newTestServer(t)

	status, _ := call(t, ts, http.MethodGet, "/api/tasks", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", status)
	}

	status, _ = call(t, ts, http.MethodGet, "/api/tasks", "wrong-token", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", status)
	}
}

func TestTasks_CreateAndList(t *testing.T) {
	ts := newTestServer(t)

	status, payload := call(t, ts, http.MethodPost, "/api/tasks", testToken, map[string]string{
		"title":  "plan sprint",
		"status": "today",
	})
	if status != http.StatusCreated {
		t.Fatalf("create: status = %d, body %s", status, payload)
	}
	var created model.Task
	if err := json.Unmarshal(payload, &created); err != nil {
		t.Fatalf("decode created task: %v", err)
	}
	if created.ID == "" || created.Status != model.StatusToday {
		t.Errorf("created task = %+v", created)
	}

	status, payload = call(t, ts, http.MethodGet, "/api/tasks?status=today", testToken, nil)
	if status != http.StatusOK {
		t.Fatalf("list: status = %d", status)
	}
	var tasks []model.Task
	if err := json.Unmarshal(payload, &tasks); err != nil {
		t.Fatalf("decode task list: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != created.ID {
		t.Errorf("list = %+v, want just the created task", tasks)
	}
}

func TestPull_FiltersBySince(t *testing.T) {
	ts := newTestServer(t)

	status, _ := call(t, ts, http.MethodPost, "/api/tasks", testToken, map[string]string{"title": "syncable"})
	if status != http.StatusCreated {
		t.Fatalf("create: status = %d", status)
	}

	var set service.ChangeSet
	status, payload := call(t, ts, http.MethodGet, "/api/sync/pull?since=0", testToken, nil)
	if status != http.StatusOK {
		t.Fatalf("pull: status = %d, body %s", status, payload)
	}
	if err := json.Unmarshal(payload, &set); err != nil {
		t.Fatalf("decode pull: %v", err)
	}
	if len(set.Tasks) != 1 {
		t.Errorf("pull since 0: %d tasks, want 1", len(set.Tasks))
	}
	if set.Timestamp == 0 {
		t.Error("pull response missing server timestamp")
	}

	future := time.Now().Add(time.Hour).UnixMilli()
	status, payload = call(t, ts, http.MethodGet, fmt.Sprintf("/api/sync/pull?since=%d", future), testToken, nil)
	if status != http.StatusOK {
		t.Fatalf("future pull: status = %d", status)
	}
	if err := json.Unmarshal(payload, &set); err != nil {
		t.Fatalf("decode future pull: %v", err)
	}
	if len(set.Tasks) != 0 {
		t.Errorf("pull from the future returned %d tasks, want 0", len(set.Tasks))
	}

	status, _ = call(t, ts, http.MethodGet, "/api/sync/pull", testToken, nil)
	if status != http.StatusBadRequest {
		t.Errorf("pull without since: status = %d, want 400", status)
	}
}

func TestPush_ReplaysOperationsInOrder(t *testing.T) {
	ts := newTestServer(t)

	push := map[string]interface{}{
		"operations": []map[string]interface{}{
			{
				"type":     "CREATE_TASK",
				"endpoint": "/api/tasks",
				"method":   "POST",
				"body":     map[string]string{"title": "queued offline", "status": "today"},
			},
			{
				"type":     "CLOSE_DAY",
				"endpoint": "/api/daylogs/close",
				"method":   "POST",
				"body":     map[string]interface{}{},
			},
		},
	}

	status, payload := call(t, ts, http.MethodPost, "/api/sync/push", testToken, push)
	if status != http.StatusOK {
		t.Fatalf("push: status = %d, body %s", status, payload)
	}

	var result struct {
		Results []struct {
			Type    string          `json:"type"`
			Status  int             `json:"status"`
			Success bool            `json:"success"`
			Data    json.RawMessage `json:"data"`
			Error   string          `json:"error"`
		} `json:"results"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("decode push result: %v", err)
	}
	if len(result.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(result.Results))
	}

	if !result.Results[0].Success || result.Results[0].Status != http.StatusCreated {
		t.Errorf("create op result = %+v", result.Results[0])
	}
	// The close-day op misses its migrations array and must fail without
	// poisoning the batch response.
	if result.Results[1].Success || result.Results[1].Status != http.StatusBadRequest {
		t.Errorf("close op result = %+v", result.Results[1])
	}
	if result.Results[1].Error == "" {
		t.Error("failed op carries no error message")
	}

	// The replayed create really landed.
	status, payload = call(t, ts, http.MethodGet, "/api/tasks?status=today", testToken, nil)
	if status != http.StatusOK {
		t.Fatalf("list: status = %d", status)
	}
	var tasks []model.Task
	if err := json.Unmarshal(payload, &tasks); err != nil {
		t.Fatalf("decode tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "queued offline" {
		t.Errorf("tasks after push = %+v", tasks)
	}
}

func TestPush_RejectsNonAPIEndpoints(t *testing.T) {
	ts := newTestServer(t)

	push := map[string]interface{}{
		"operations": []map[string]interface{}{
			{"type": "EVIL", "endpoint": "http://elsewhere/steal", "method": "POST"},
		},
	}
	status, payload := call(t, ts, http.MethodPost, "/api/sync/push", testToken, push)
	if status != http.StatusOK {
		t.Fatalf("push: status = %d", status)
	}

	var result struct {
		Results []struct {
			Success bool `json:"success"`
			Status  int  `json:"status"`
		} `json:"results"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Results) != 1 || result.Results[0].Success || result.Results[0].Status != http.StatusBadRequest {
		t.Errorf("absolute endpoint result = %+v", result.Results)
	}
}

func TestDayLifecycle_CloseThenReorderRejected(t *testing.T) {
	ts := newTestServer(t)

	status, payload := call(t, ts, http.MethodPost, "/api/tasks", testToken, map[string]string{
		"title":  "wrap up",
		"status": "today",
	})
	if status != http.StatusCreated {
		t.Fatalf("create: status = %d", status)
	}
	var task model.Task
	if err := json.Unmarshal(payload, &task); err != nil {
		t.Fatalf("decode task: %v", err)
	}

	status, payload = call(t, ts, http.MethodPost, "/api/daylogs/close", testToken, map[string]interface{}{
		"migrations": []map[string]string{
			{"taskId": task.ID, "destination": "backlog"},
		},
	})
	if status != http.StatusOK {
		t.Fatalf("close: status = %d, body %s", status, payload)
	}

	today := time.Now().Format("2006-01-02")
	status, payload = call(t, ts, http.MethodPost, "/api/daylogs/"+today+"/entries/reorder", testToken, map[string]interface{}{
		"items": []map[string]interface{}{},
	})
	if status != http.StatusBadRequest {
		t.Errorf("reorder on closed log: status = %d, body %s, want 400", status, payload)
	}

	// The day detail still renders from its snapshot.
	status, payload = call(t, ts, http.MethodGet, "/api/daylogs/"+today, testToken, nil)
	if status != http.StatusOK {
		t.Fatalf("day detail: status = %d", status)
	}
	var dayLog model.DayLog
	if err := json.Unmarshal(payload, &dayLog); err != nil {
		t.Fatalf("decode day log: %v", err)
	}
	if dayLog.ClosedAt == nil {
		t.Error("day log not closed")
	}
	if len(dayLog.Entries) != 1 || dayLog.Entries[0].Signifier != model.SignifierMigratedBacklog {
		t.Errorf("entries = %+v, want one migrated_backlog snapshot", dayLog.Entries)
	}
}

func TestOpenDay_ReturnsTodayLog(t *testing.T) {
	ts := newTestServer(t)

	status, payload := call(t, ts, http.MethodPost, "/api/daylogs/open", testToken, nil)
	if status != http.StatusOK {
		t.Fatalf("open: status = %d", status)
	}

	var result service.OpenDayResult
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Today == nil {
		t.Fatal("open day returned no today log")
	}
	if len(result.UnclosedPastLogs) != 0 {
		t.Errorf("fresh account has %d unclosed past logs", len(result.UnclosedPastLogs))
	}
}

func TestSearch_MatchesTitleSubstring(t *testing.T) {
	ts := newTestServer(t)

	for _, title := range []string{"buy groceries", "review budget", "call dentist"} {
		status, _ := call(t, ts, http.MethodPost, "/api/tasks", testToken, map[string]string{"title": title})
		if status != http.StatusCreated {
			t.Fatalf("create %q: status = %d", title, status)
		}
	}

	status, payload := call(t, ts, http.MethodGet, "/api/search?q=bu", testToken, nil)
	if status != http.StatusOK {
		t.Fatalf("search: status = %d, body %s", status, payload)
	}
	var tasks []model.Task
	if err := json.Unmarshal(payload, &tasks); err != nil {
		t.Fatalf("decode search results: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("search q=bu returned %d tasks, want 2", len(tasks))
	}

	status, _ = call(t, ts, http.MethodGet, "/api/search", testToken, nil)
	if status != http.StatusBadRequest {
		t.Errorf("search without q: status = %d, want 400", status)
	}
}

func TestTasks_ReorderPersistsSortOrder(t *testing.T) {
	ts := newTestServer(t)

	var ids []string
	for _, title := range []string{"first", "second"} {
		status, payload := call(t, ts, http.MethodPost, "/api/tasks", testToken, map[string]string{"title": title})
		if status != http.StatusCreated {
			t.Fatalf("create %q: status = %d", title, status)
		}
		var task model.Task
		if err := json.Unmarshal(payload, &task); err != nil {
			t.Fatalf("decode task: %v", err)
		}
		ids = append(ids, task.ID)
	}

	status, payload := call(t, ts, http.MethodPost, "/api/tasks/reorder", testToken, map[string]interface{}{
		"items": []map[string]interface{}{
			{"id": ids[0], "sortOrder": 5},
			{"id": ids[1], "sortOrder": 2},
		},
	})
	if status != http.StatusOK {
		t.Fatalf("reorder: status = %d, body %s", status, payload)
	}

	status, payload = call(t, ts, http.MethodGet, "/api/tasks", testToken, nil)
	if status != http.StatusOK {
		t.Fatalf("list: status = %d", status)
	}
	var tasks []model.Task
	if err := json.Unmarshal(payload, &tasks); err != nil {
		t.Fatalf("decode tasks: %v", err)
	}
	orders := map[string]int{}
	for _, task := range tasks {
		orders[task.ID] = task.SortOrder
	}
	if orders[ids[0]] != 5 || orders[ids[1]] != 2 {
		t.Errorf("sort orders = %v, want %s:5 %s:2", orders, ids[0], ids[1])
	}
}

func TestSettings_PatchMergesDocument(t *testing.T) {
	ts := newTestServer(t)

	status, payload := call(t, ts, http.MethodGet, "/api/settings", testToken, nil)
	if status != http.StatusOK {
		t.Fatalf("get settings: status = %d", status)
	}
	var prefs map[string]interface{}
	if err := json.Unmarshal(payload, &prefs); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if len(prefs) != 0 {
		t.Errorf("fresh account settings = %v, want empty", prefs)
	}

	status, _ = call(t, ts, http.MethodPatch, "/api/settings", testToken, map[string]interface{}{
		"theme": "dark", "weekStartsOn": 1,
	})
	if status != http.StatusOK {
		t.Fatalf("first patch: status = %d", status)
	}

	status, payload = call(t, ts, http.MethodPatch, "/api/settings", testToken, map[string]interface{}{
		"theme": "light",
	})
	if status != http.StatusOK {
		t.Fatalf("second patch: status = %d", status)
	}
	if err := json.Unmarshal(payload, &prefs); err != nil {
		t.Fatalf("decode merged settings: %v", err)
	}
	if prefs["theme"] != "light" {
		t.Errorf("theme = %v, want light", prefs["theme"])
	}
	if prefs["weekStartsOn"] != float64(1) {
		t.Errorf("weekStartsOn = %v, want 1; patch must merge, not replace", prefs["weekStartsOn"])
	}
}

func TestExport_DumpsWholeAccount(t *testing.T) {
	ts := newTestServer(t)

	status, _ := call(t, ts, http.MethodPost, "/api/tasks", testToken, map[string]string{
		"title":  "exportable",
		"status": "today",
	})
	if status != http.StatusCreated {
		t.Fatalf("create: status = %d", status)
	}

	status, payload := call(t, ts, http.MethodGet, "/api/export", testToken, nil)
	if status != http.StatusOK {
		t.Fatalf("export: status = %d, body %s", status, payload)
	}
	var dump service.ExportData
	if err := json.Unmarshal(payload, &dump); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if dump.ExportedAt.IsZero() {
		t.Error("export missing exportedAt stamp")
	}
	if len(dump.Tasks) != 1 || dump.Tasks[0].Title != "exportable" {
		t.Errorf("exported tasks = %+v", dump.Tasks)
	}
	// A today task lands in the day log, so the snapshot comes along.
	if len(dump.DayLogs) != 1 || len(dump.DayLogEntries) != 1 {
		t.Errorf("export has %d daylogs and %d entries, want 1 and 1", len(dump.DayLogs), len(dump.DayLogEntries))
	}
}

func TestContexts_SystemInboxProtected(t *testing.T) {
	ts := newTestServer(t)

	status, payload := call(t, ts, http.MethodGet, "/api/contexts", testToken, nil)
	if status != http.StatusOK {
		t.Fatalf("list contexts: status = %d", status)
	}
	var contexts []repository.ContextWithTaskCount
	if err := json.Unmarshal(payload, &contexts); err != nil {
		t.Fatalf("decode contexts: %v", err)
	}
	if len(contexts) != 1 || contexts[0].Name != model.SystemContextName {
		t.Fatalf("contexts = %+v, want the system inbox", contexts)
	}

	inboxID := contexts[0].ID
	status, _ = call(t, ts, http.MethodDelete, "/api/contexts/"+inboxID, testToken, nil)
	if status != http.StatusBadRequest {
		t.Errorf("delete inbox: status = %d, want 400", status)
	}
}
