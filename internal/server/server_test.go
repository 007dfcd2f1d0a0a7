package server

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/hyperjump/kioku/internal/config"
)

func TestServer_StopWhileStarting(t *testing.T) {
	srv := NewServer(nil, &config.ServerConfig{Host: "127.0.0.1", Port: 0}, nil)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Start returned %v, want http.ErrServerClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestServer_StopWithoutStart(t *testing.T) {
	srv := NewServer(nil, &config.ServerConfig{Port: 8080}, nil)
	if err := srv.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
