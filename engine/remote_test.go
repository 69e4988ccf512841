package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"school-planner/domain"
)

func TestHTTPRemoteFetch(t *testing.T) {
	doc := domain.DefaultDocument()
	doc, _, err := domain.AddTask(doc, domain.TaskInput{Title: "from server"}, time.Now())
	if err != nil {
		t.Fatalf("seed task: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/state" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-API-Key"); got != "s3cret" {
			t.Errorf("X-API-Key = %q", got)
		}
		body, _ := sonic.Marshal(doc)
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL, "s3cret")
	got, err := remote.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].Title != "from server" {
		t.Fatalf("fetched document mismatch: %#v", got.Tasks)
	}
}

func TestHTTPRemoteFetchUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"missing API key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL, "")
	_, err := remote.Fetch(context.Background())
	var serr *SyncError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SyncError, got %v", err)
	}
	if serr.Op != "load" {
		t.Fatalf("Op = %q, want load", serr.Op)
	}
}

func TestHTTPRemoteStore(t *testing.T) {
	var received domain.Document
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"updated_at":"2024-01-10T09:00:00.000000000Z"}`))
	}))
	defer srv.Close()

	doc := domain.DefaultDocument()
	doc, _, err := domain.AddCourse(doc, "Physics", "#336699", nil)
	if err != nil {
		t.Fatalf("seed course: %v", err)
	}
	remote := NewHTTPRemote(srv.URL, "s3cret")
	if err := remote.Store(context.Background(), doc); err != nil {
		t.Fatalf("store: %v", err)
	}
	if len(received.Courses) != 1 || received.Courses[0].Name != "Physics" {
		t.Fatalf("server received %#v", received.Courses)
	}
}

func TestHTTPRemoteStoreRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":false,"error":"storage unavailable"}`))
	}))
	defer srv.Close()

	remote := NewHTTPRemote(srv.URL, "")
	err := remote.Store(context.Background(), domain.DefaultDocument())
	var serr *SyncError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SyncError, got %v", err)
	}
	if serr.Op != "save" {
		t.Fatalf("Op = %q, want save", serr.Op)
	}
}
