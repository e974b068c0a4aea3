package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second, zerolog.Nop()), srv
}

func TestDecodeList_BareArray(t *testing.T) {
	var out []map[string]string
	if err := decodeList([]byte(`[{"id":"1"},{"id":"2"}]`), "todos", &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Errorf("decoded %d items, want 2", len(out))
	}
}

func TestDecodeList_WrappedObject(t *testing.T) {
	var out []map[string]string
	if err := decodeList([]byte(`{"todos":[{"id":"1"}]}`), "todos", &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 {
		t.Errorf("decoded %d items, want 1", len(out))
	}
}

func TestDecodeList_EmptyAndNull(t *testing.T) {
	for _, body := range []string{"", "null", `{}`, `{"todos":null}`, `{"other":[1]}`} {
		var out []map[string]string
		if err := decodeList([]byte(body), "todos", &out); err != nil {
			t.Errorf("decodeList(%q) error: %v", body, err)
		}
		if len(out) != 0 {
			t.Errorf("decodeList(%q) decoded %d items, want 0", body, len(out))
		}
	}
}

func TestListTodos_BothShapes(t *testing.T) {
	for name, body := range map[string]string{
		"bare":    `[{"id":7,"title":"Fix login bug","status":"pending"}]`,
		"wrapped": `{"todos":[{"id":"7","title":"Fix login bug","status":"pending"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/todos" {
					t.Errorf("path = %q, want /todos", r.URL.Path)
				}
				w.Write([]byte(body))
			}))

			todos, err := c.ListTodos(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if len(todos) != 1 {
				t.Fatalf("got %d todos, want 1", len(todos))
			}
			// Numeric and string ids normalize identically.
			if todos[0].ID.String() != "7" {
				t.Errorf("ID = %q, want 7", todos[0].ID)
			}
		})
	}
}

func TestRequestCarriesCorrelationID(t *testing.T) {
	seen := make(map[string]bool)
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			t.Error("missing X-Request-ID header")
		}
		seen[id] = true
		w.Write([]byte("[]"))
	}))

	for i := 0; i < 3; i++ {
		if _, err := c.ListFeatures(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if len(seen) != 3 {
		t.Errorf("got %d distinct request ids, want 3", len(seen))
	}
}

func TestAPIError(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "planner busy", http.StatusConflict)
	}))

	err := c.PlanTodo(context.Background(), "7")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusConflict {
		t.Errorf("StatusCode = %d, want 409", apiErr.StatusCode)
	}
}

func TestApproveTodoBody(t *testing.T) {
	var got map[string]any
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/todos/7/approve" {
			t.Errorf("%s %s, want POST /todos/7/approve", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))

	when := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	err := c.ApproveTodo(context.Background(), "7", ApproveTodoRequest{
		Action:        "schedule",
		ScheduledTime: &when,
		RunPostOp:     true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got["action"] != "schedule" {
		t.Errorf("action = %v, want schedule", got["action"])
	}
	if got["run_post_op"] != true {
		t.Errorf("run_post_op = %v, want true", got["run_post_op"])
	}
	if _, ok := got["scheduled_time"]; !ok {
		t.Error("scheduled_time missing from payload")
	}
}

func TestGenerateTasksPayload(t *testing.T) {
	var got map[string]any
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audit/qa/generate-tasks" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusAccepted)
	}))

	err := c.GenerateTasks(context.Background(), AuditQA, "rep-1", []string{"f1", "f2"})
	if err != nil {
		t.Fatal(err)
	}
	if got["reportId"] != "rep-1" {
		t.Errorf("reportId = %v, want rep-1", got["reportId"])
	}
	findings, _ := got["findingIds"].([]any)
	if len(findings) != 2 {
		t.Errorf("findingIds = %v, want 2 entries", got["findingIds"])
	}
}

func TestCronJobNextRun(t *testing.T) {
	now := time.Date(2026, 3, 1, 11, 59, 0, 0, time.UTC)

	job := CronJob{Name: "backup", Schedule: "0 12 * * *", Enabled: true}
	next := job.NextRun(now)
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("NextRun = %v, want %v", next, want)
	}

	disabled := CronJob{Name: "backup", Schedule: "0 12 * * *", Enabled: false}
	if !disabled.NextRun(now).IsZero() {
		t.Error("disabled job should have zero next run")
	}

	invalid := CronJob{Name: "bad", Schedule: "not a schedule", Enabled: true}
	if !invalid.NextRun(now).IsZero() {
		t.Error("unparseable schedule should have zero next run")
	}
}

func TestWebsocketURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://gw.local:8420", "ws://gw.local:8420/containers/c1/logs/stream"},
		{"https://gw.local", "wss://gw.local/containers/c1/logs/stream"},
	}
	for _, tt := range tests {
		c := New(tt.base, time.Second, zerolog.Nop())
		got, err := c.websocketURL("/containers/c1/logs/stream")
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("websocketURL(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}
