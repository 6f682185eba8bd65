package telemetry

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestInit_DisabledIsNoop(t *testing.T) {
	shutdown, err := Init("gateway-test", false, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInit_EnabledShutsDownCleanly(t *testing.T) {
	shutdown, err := Init("gateway-test", true, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
