package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, FlowID(ctx))

	ctx = WithFlowID(ctx, "f1")
	ctx = WithRunID(ctx, "r1")
	ctx = WithNodeID(ctx, "n1")

	assert.Equal(t, "f1", FlowID(ctx))
	assert.Equal(t, "r1", RunID(ctx))
	assert.Equal(t, "n1", NodeID(ctx))
}

func TestCorrelationHandler_InjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := WithRunID(WithFlowID(context.Background(), "f1"), "r1")
	logger.InfoContext(ctx, "node executed")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "f1", record["flow_id"])
	assert.Equal(t, "r1", record["run_id"])
	assert.NotContains(t, record, "node_id")
}

func TestCorrelationHandler_NoIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	logger.Info("plain")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.NotContains(t, record, "flow_id")
}
