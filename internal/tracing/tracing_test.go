package tracing

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/sungwon/move-booking/internal/config"
)

func TestSetup_NoEndpointInstallsPropagatorOnly(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracingConfig{}, "api-server")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if shutdown == nil {
		t.Fatal("expected non-nil shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("expected no-op shutdown to succeed, got %v", err)
	}

	fields := otel.GetTextMapPropagator().Fields()
	joined := strings.Join(fields, ",")
	if !strings.Contains(joined, "traceparent") {
		t.Errorf("expected traceparent in propagator fields, got %v", fields)
	}
	if !strings.Contains(joined, "baggage") {
		t.Errorf("expected baggage in propagator fields, got %v", fields)
	}
}

func TestPropagator_RoundTripsThroughMapCarrier(t *testing.T) {
	p := Propagator()
	in := propagation.MapCarrier{
		"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	}

	ctx := p.Extract(context.Background(), in)
	out := propagation.MapCarrier{}
	p.Inject(ctx, out)

	if out.Get("traceparent") != in.Get("traceparent") {
		t.Errorf("expected traceparent %q, got %q", in.Get("traceparent"), out.Get("traceparent"))
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  string
	}{
		{name: "always", ratio: 1, want: "root:AlwaysOnSampler"},
		{name: "above one", ratio: 2.5, want: "root:AlwaysOnSampler"},
		{name: "never", ratio: 0, want: "root:AlwaysOffSampler"},
		{name: "negative", ratio: -1, want: "root:AlwaysOffSampler"},
		{name: "ratio", ratio: 0.25, want: "root:TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sampler(tt.ratio).Description()
			if !strings.Contains(got, tt.want) {
				t.Errorf("expected sampler description to contain %q, got %q", tt.want, got)
			}
		})
	}
}

func TestServiceName_Default(t *testing.T) {
	if got := serviceName(config.TracingConfig{}); got != defaultServiceName {
		t.Errorf("expected %s, got %s", defaultServiceName, got)
	}
	if got := serviceName(config.TracingConfig{ServiceName: "custom"}); got != "custom" {
		t.Errorf("expected custom, got %s", got)
	}
}
