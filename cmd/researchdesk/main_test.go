package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/researchdesk/config"
	"github.com/mohammad-safakhou/researchdesk/internal/agent/core"
	"github.com/mohammad-safakhou/researchdesk/internal/agent/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestPrintAgents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printAgents(&buf, core.DomainStocks))
	out := buf.String()

	assert.Contains(t, out, "academicnews")
	assert.Contains(t, out, "Deep Search")
	assert.Contains(t, out, "Defaults for stocks: deepsearch, academicnews (about $0.351, 8s)")
	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 4)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
}

func TestWriteReport(t *testing.T) {
	res := core.WorkflowResult{RunID: "r", Query: "q", Timestamp: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)}

	var md bytes.Buffer
	require.NoError(t, writeReport(&md, res, "markdown"))
	assert.True(t, strings.HasPrefix(md.String(), "# Research Report: q\n\n**Date:** 2025-01-02"))

	var js bytes.Buffer
	require.NoError(t, writeReport(&js, res, "json"))
	assert.Contains(t, js.String(), `"run_id": "r"`)
}

func TestResearchCmd_Validation(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"research", "--format", "pdf", "anything"})
	root.SetOut(&bytes.Buffer{})
	err := root.Execute()
	assert.EqualError(t, err, `unknown format "pdf" (json or markdown)`)

	root = newRootCmd()
	root.SetArgs([]string{"research"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	assert.Error(t, root.Execute())
}

func TestBuildApp_ShutsDownTracingOnError(t *testing.T) {
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	// collectors already registered make the telemetry step fail
	reg := prometheus.NewRegistry()
	_, err := telemetry.New(nil, reg)
	require.NoError(t, err)

	cfg := &config.Config{Telemetry: config.TelemetryConfig{TracingEnabled: true, OTLPEndpoint: "127.0.0.1:1"}}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, err := buildApp(ctx, cfg, false, reg)
	require.Error(t, err)
	assert.Nil(t, a)

	_, span := otel.Tracer("test").Start(context.Background(), "after-failure")
	defer span.End()
	assert.False(t, span.IsRecording())
}
