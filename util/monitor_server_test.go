package util

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewMonitorServer(t *testing.T) {
	server := NewMonitorServer()

	if server == nil {
		t.Fatal("NewMonitorServer should return non-nil server")
	}

	if server.running == nil {
		t.Error("NewMonitorServer should initialize running mutex")
	}

	if server.srv == nil {
		t.Error("NewMonitorServer should initialize HTTP server")
	}

	if server.mux == nil {
		t.Error("NewMonitorServer should initialize its own mux")
	}
}

func TestMonitorServer_AddHandler(t *testing.T) {
	server := NewMonitorServer()

	testHandler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test response")) //nolint:errcheck // test helper
	}

	server.AddHandler("/test", testHandler)

	req := httptest.NewRequest("GET", "/test", nil)
	w := httptest.NewRecorder()

	// Handlers live on the server's own mux, not the default one
	server.mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	if body != "test response" {
		t.Errorf("Expected 'test response', got '%s'", body)
	}
}

func TestMonitorServer_AddRawHandler(t *testing.T) {
	server := NewMonitorServer()

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("raw handler response")) //nolint:errcheck // test helper
	})

	server.AddRawHandler("/raw", testHandler)

	req := httptest.NewRequest("GET", "/raw", nil)
	w := httptest.NewRecorder()

	server.mux.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}

	body := w.Body.String()
	if body != "raw handler response" {
		t.Errorf("Expected 'raw handler response', got '%s'", body)
	}
}

func TestMonitorServer_StartAndRestart(t *testing.T) {
	// Port 0 lets the kernel assign a free port
	Config.Set("details_port", 0)
	server := NewMonitorServer()

	err := server.Start()
	if err != nil {
		t.Errorf("Start() should not return error, got: %v", err)
	}

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	err = server.Start()
	if err == nil {
		t.Error("Start() should return error when already running")
	}

	server.Restart()

	// Give server time to restart
	time.Sleep(200 * time.Millisecond)
}
