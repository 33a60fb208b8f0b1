package obstrace

import (
	"context"
	"os"
	"sync"
	"testing"
)

func TestInit_Disabled(t *testing.T) {
	resetGlobalConfig()
	os.Unsetenv("OTEL_ENABLED")

	ctx := context.Background()
	shutdown, err := Init(ctx)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected a non-nil shutdown function")
	}
	if err := shutdown(ctx); err != nil {
		t.Errorf("expected no error on shutdown, got %v", err)
	}
}

func TestEnabled(t *testing.T) {
	resetGlobalConfig()
	os.Unsetenv("OTEL_ENABLED")
	if Enabled() {
		t.Error("expected Enabled() to return false")
	}
}

func TestGetConfig(t *testing.T) {
	resetGlobalConfig()
	os.Setenv("OTEL_SERVICE_NAME", "test-service")
	defer os.Unsetenv("OTEL_SERVICE_NAME")

	cfg := GetConfig()
	if cfg == nil {
		t.Fatal("expected config to be non-nil")
	}
	if cfg.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %q", cfg.ServiceName)
	}
}

func TestTracer_NonNil(t *testing.T) {
	if Tracer() == nil {
		t.Fatal("expected Tracer() to return a non-nil tracer")
	}
}

func resetGlobalConfig() {
	globalConfig = nil
	configOnce = sync.Once{}
}
