package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetupExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := Setup(true, "aidaily-test", &buf)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	_, span := Tracer().Start(context.Background(), "pipeline.test")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "pipeline.test") {
		t.Fatalf("span not exported: %q", buf.String())
	}
}

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(false, "x", nil)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}
