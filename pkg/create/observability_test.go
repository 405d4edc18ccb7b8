package create

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusMetricsRecorder(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder, err := NewPrometheusMetricsRecorder(registry)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	host := newMemoryHost()
	creator := &testCreator{identifier: "render", host: host}
	cc := NewCreateContext(host, WithMetricsRecorder(recorder))
	if err := cc.RegisterCreator(creator); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := cc.Create(context.Background(), "render", "Main", nil, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var sawCounter bool
	for _, family := range families {
		if family.GetName() == "publishcore_operations_total" {
			sawCounter = true
		}
	}
	if !sawCounter {
		t.Fatal("expected operation counter to be registered")
	}

	if _, err := NewPrometheusMetricsRecorder(registry); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestJSONTraceTracer(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTraceTracer(&buf)

	_, span := tracer.StartSpan(context.Background(), "save")
	span.End(errors.New("scene is locked"))

	line := strings.TrimSpace(buf.String())
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("invalid trace line %q: %v", line, err)
	}
	if record["operation"] != "save" {
		t.Fatalf("unexpected operation %v", record["operation"])
	}
	if record["success"] != false {
		t.Fatalf("expected success=false, got %v", record["success"])
	}
	if record["error"] != "scene is locked" {
		t.Fatalf("unexpected error field %v", record["error"])
	}
}
