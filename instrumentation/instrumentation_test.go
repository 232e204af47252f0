package instrumentation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "disabled",
			config: Config{Enabled: false},
		},
		{
			name: "with service name and version",
			config: Config{
				Enabled:        true,
				ServiceName:    "test-service",
				ServiceVersion: "1.0.0",
			},
		},
		{
			name:   "empty service name gets default",
			config: Config{Enabled: true},
		},
		{
			name: "with OTLP exporter",
			config: Config{
				Enabled:      true,
				OTLPEndpoint: "127.0.0.1:4318",
				OTLPInsecure: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}

			if inst.Meter("http") == nil {
				t.Error("Meter('http') returned nil")
			}
			if inst.Tracer("server") == nil {
				t.Error("Tracer('server') returned nil")
			}
			if inst.Metrics() == nil {
				t.Error("Metrics() returned nil")
			}
			if inst.TracerProvider() == nil {
				t.Error("TracerProvider() returned nil")
			}
			if inst.MeterProvider() == nil {
				t.Error("MeterProvider() returned nil")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// The OTLP exporter has nothing to flush, so shutdown succeeds without a collector.
			if err := inst.Shutdown(ctx); err != nil {
				t.Errorf("Shutdown() error = %v", err)
			}
			if err := inst.Shutdown(ctx); err != nil {
				t.Errorf("second Shutdown() error = %v", err)
			}
		})
	}
}

func TestInstrumentation_NoOpProviders(t *testing.T) {
	inst, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	inst.Metrics().RecordTokenIssued(ctx, "password")
	inst.Metrics().RecordAuthorizeRequest(ctx, "code", "pending")

	_, span := inst.Tracer("server").Start(ctx, "test-span")
	span.End()
}

func TestInstrumentation_ConcurrentAccess(t *testing.T) {
	inst, err := New(Config{
		Enabled:        true,
		ServiceName:    "concurrent-test",
		ServiceVersion: "1.0.0",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = inst.Shutdown(context.Background()) }()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				inst.Metrics().RecordTokenIssued(ctx, fmt.Sprintf("grant-%d", id%3))
				_, span := inst.Tracer("server").Start(ctx, "concurrent-span")
				span.End()
			}
		}(i)
	}
	wg.Wait()
}

func TestShouldLogClientIPs(t *testing.T) {
	for _, enabled := range []bool{true, false} {
		inst, err := New(Config{LogClientIPs: enabled})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if got := inst.ShouldLogClientIPs(); got != enabled {
			t.Errorf("ShouldLogClientIPs() = %v, want %v", got, enabled)
		}
	}
}
