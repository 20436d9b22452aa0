package socks

import (
	"errors"
	"testing"
	"time"
)

func TestNewEmbeddedTor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts []EmbeddedTorOption
		want time.Duration
	}{
		{"default timeout", nil, DefaultTorStartupTimeout},
		{"custom timeout", []EmbeddedTorOption{WithStartupTimeout(5 * time.Minute)}, 5 * time.Minute},
		{"zero keeps default", []EmbeddedTorOption{WithStartupTimeout(0)}, DefaultTorStartupTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := NewEmbeddedTor(tt.opts...)
			if e.startupTimeout != tt.want {
				t.Errorf("startupTimeout = %v, want %v", e.startupTimeout, tt.want)
			}
		})
	}
}

func TestEmbeddedTorBeforeStart(t *testing.T) {
	t.Parallel()

	e := NewEmbeddedTor()

	if e.IsRunning() {
		t.Error("IsRunning should be false before Start")
	}
	if e.SocksAddr() != "" || e.ControlAddr() != "" {
		t.Error("addresses should be empty before Start")
	}
	if err := e.Stop(); err != nil {
		t.Errorf("Stop on unstarted instance: %v", err)
	}
	if _, err := e.NewClient(time.Second); !errors.Is(err, ErrTorNotRunning) {
		t.Errorf("expected ErrTorNotRunning, got %v", err)
	}
}
