package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/flexifi/poolwatch/internal/model"
	"github.com/flexifi/poolwatch/internal/stream"
	"github.com/flexifi/poolwatch/internal/watch"
)

// TestNewClient tests client construction with various options.
func TestNewClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := NewClient("http://localhost:8080/")

		if c.baseURL != "http://localhost:8080" {
			t.Errorf("baseURL = %q, want trailing slash trimmed", c.baseURL)
		}
		if c.httpClient.Timeout != 10*time.Second {
			t.Errorf("Timeout = %v, want %v", c.httpClient.Timeout, 10*time.Second)
		}
		if c.maxRetries != 3 {
			t.Errorf("maxRetries = %d, want %d", c.maxRetries, 3)
		}
		if c.logger == nil {
			t.Error("logger should not be nil")
		}
	})

	t.Run("with options", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		hc := &http.Client{}
		c := NewClient("http://localhost:8080",
			WithHTTPClient(hc),
			WithTimeout(15*time.Second),
			WithRetries(10, 50*time.Millisecond),
			WithLogger(logger),
		)
		if c.httpClient != hc || hc.Timeout != 15*time.Second {
			t.Errorf("http client not configured: %+v", c.httpClient)
		}
		if c.maxRetries != 10 || c.retryBackoff != 50*time.Millisecond {
			t.Errorf("retries = %d/%v", c.maxRetries, c.retryBackoff)
		}
		if c.logger != logger {
			t.Error("logger not set correctly")
		}
	})
}

// TestAPIError tests the APIError type.
func TestAPIError(t *testing.T) {
	err := &APIError{StatusCode: 404, Message: "unknown watch \"x\""}
	if got, want := err.Error(), `poolwatch api error 404: unknown watch "x"`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	tests := []struct {
		code     int
		expected bool
	}{
		{500, true},
		{503, true},
		{429, true},
		{400, false},
		{404, false},
		{200, false},
	}
	for _, tt := range tests {
		err := &APIError{StatusCode: tt.code}
		if got := err.IsRetryable(); got != tt.expected {
			t.Errorf("IsRetryable() for status %d = %v, want %v", tt.code, got, tt.expected)
		}
	}
}

func TestDoRequest(t *testing.T) {
	t.Run("error body message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Accept") != "application/json" {
				t.Errorf("Accept header = %q", r.Header.Get("Accept"))
			}
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"unknown watch \"x\""}`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %T", err)
		}
		if apiErr.Message != `unknown watch "x"` {
			t.Errorf("Message = %q", apiErr.Message)
		}
	})

	t.Run("plain text error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`upstream`))
		}))
		defer server.Close()

		c := NewClient(server.URL)
		_, err := c.doRequest(context.Background(), http.MethodGet, "/test", nil)

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Message != "Bad Gateway" {
			t.Errorf("err = %v, want status text message", err)
		}
	})
}

func TestDoWithRetry(t *testing.T) {
	t.Run("retries on 5xx and succeeds", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&attempts, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"ok": true}`))
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("does not retry on 4xx", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(3, 10*time.Millisecond))
		if _, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil); err == nil {
			t.Fatal("expected error, got nil")
		}
		if attempts != 1 {
			t.Errorf("attempts = %d, want 1", attempts)
		}
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		var attempts int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(2, 10*time.Millisecond))
		_, err := c.doWithRetry(context.Background(), http.MethodGet, "/test", nil)
		if err == nil || !strings.Contains(err.Error(), "max retries exceeded") {
			t.Errorf("err = %v, want max retries exceeded", err)
		}
		if attempts != 3 {
			t.Errorf("attempts = %d, want 3", attempts)
		}
	})

	t.Run("context cancellation during retry", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewClient(server.URL, WithRetries(5, 50*time.Millisecond))
		ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
		defer cancel()

		_, err := c.doWithRetry(ctx, http.MethodGet, "/test", nil)
		if err == nil || !strings.Contains(err.Error(), "context") {
			t.Errorf("err = %v, want context error", err)
		}
	})
}

func TestEndpoints(t *testing.T) {
	id := uuid.New()
	view := stream.View{Watch: "pool", Status: model.PhaseReady, Value: "42", Width: "42%", Ratio: 42}

	var posts int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Health{Status: "ok", Watches: 1, Storage: "disabled"})
	})
	mux.HandleFunc("GET /api/v1/watches", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(WatchList{Watches: []Watch{{Info: watch.Info{Name: "pool"}, View: view}}})
	})
	mux.HandleFunc("GET /api/v1/watches/{name}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Watch{Info: watch.Info{Name: r.PathValue("name"), MaxValue: 100}, View: view})
	})
	mux.HandleFunc("GET /api/v1/watches/{name}/history", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "5" {
			t.Errorf("limit = %q, want 5", r.URL.Query().Get("limit"))
		}
		json.NewEncoder(w).Encode(History{Watch: "pool", Readings: []model.Reading{{ID: id, Watch: "pool", Value: 42}}})
	})
	mux.HandleFunc("POST /api/v1/watches/{name}/resubscribe", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&posts, 1)
		json.NewEncoder(w).Encode(Resubscribed{Watch: r.PathValue("name"), SubscriptionID: id.String()})
	})
	mux.HandleFunc("GET /api/v1/portfolio", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(model.Portfolio{Holdings: []model.Holding{{Name: "Bakery", Percentage: 40}}})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	c := NewClient(server.URL, WithRetries(0, time.Millisecond))
	ctx := context.Background()

	h, err := c.Health(ctx)
	if err != nil || h.Status != "ok" || h.Watches != 1 {
		t.Errorf("Health = %+v, %v", h, err)
	}

	list, err := c.Watches(ctx)
	if err != nil || len(list) != 1 || list[0].View.Width != "42%" {
		t.Errorf("Watches = %+v, %v", list, err)
	}

	w, err := c.Watch(ctx, "pool")
	if err != nil || w.Name != "pool" || w.MaxValue != 100 {
		t.Errorf("Watch = %+v, %v", w, err)
	}

	readings, err := c.History(ctx, "pool", 5)
	if err != nil || len(readings) != 1 || readings[0].ID != id {
		t.Errorf("History = %+v, %v", readings, err)
	}

	res, err := c.Resubscribe(ctx, "pool")
	if err != nil || res.SubscriptionID != id.String() {
		t.Errorf("Resubscribe = %+v, %v", res, err)
	}
	if posts != 1 {
		t.Errorf("posts = %d, want 1", posts)
	}

	p, err := c.Portfolio(ctx)
	if err != nil || len(p.Holdings) != 1 || p.Holdings[0].Percentage != 40 {
		t.Errorf("Portfolio = %+v, %v", p, err)
	}
}

func TestJSONUnmarshalError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"watches": [`))
	}))
	defer server.Close()

	c := NewClient(server.URL)
	if _, err := c.Watches(context.Background()); err == nil || !strings.Contains(err.Error(), "unmarshal") {
		t.Errorf("err = %v, want unmarshal error", err)
	}
}
