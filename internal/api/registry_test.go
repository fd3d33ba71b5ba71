package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"
)

type fakeEndpoint struct {
	method, path, use, group string
	init                     bool
}

func (e *fakeEndpoint) Route() (string, string, http.HandlerFunc) {
	return e.method, e.path, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}
}

func (e *fakeEndpoint) RequiresInit() bool { return e.init }
func (e *fakeEndpoint) Group() string      { return e.group }

func (e *fakeEndpoint) Command(func() string) *cobra.Command {
	return &cobra.Command{Use: e.use}
}

func TestRegistry_RegisterRoutes(t *testing.T) {
	r := NewRegistry()
	r.Register(
		&fakeEndpoint{method: "GET", path: "/health", use: "health"},
		&fakeEndpoint{method: "GET", path: "/api/projects", use: "list", group: "projects", init: true},
	)

	mux := http.NewServeMux()
	r.RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/api/projects", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s: status %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestRegistry_BuildCommands(t *testing.T) {
	r := NewRegistry()
	r.Register(
		&fakeEndpoint{use: "health"},
		&fakeEndpoint{use: "list", group: "scenes"},
		&fakeEndpoint{use: "get", group: "scenes"},
		&fakeEndpoint{use: "list", group: "projects"},
	)

	root := r.BuildCommands(func() string { return "" })
	if len(root.Commands()) != 3 {
		t.Fatalf("expected 3 top-level commands, got %d", len(root.Commands()))
	}

	scenes, _, err := root.Find([]string{"scenes"})
	if err != nil || scenes.Use != "scenes" {
		t.Fatalf("scenes group not found: %v", err)
	}
	if len(scenes.Commands()) != 2 {
		t.Errorf("expected 2 scene commands, got %d", len(scenes.Commands()))
	}
}
