package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurahive/paygate/flow"
	"github.com/aurahive/paygate/types"
)

func TestVisionToolCall(t *testing.T) {
	exec := &fakeExecutor{responses: map[string]*flow.Result{
		"https://savant.example.com/perceive": {
			StatusCode: 200,
			Body:       []byte(`{"make":"Toyota","model":"Camry","year":2021,"color":"Silver","estimated_price":18500,"confidence_score":0.93}`),
			Paid:       true,
		},
	}}

	tool := &VisionTool{BaseURL: "https://savant.example.com"}
	result, report, err := tool.Call(context.Background(), exec, map[string]any{
		"image_source": "https://img.example.com/camry.jpg",
	})
	require.NoError(t, err)

	assert.Equal(t, "ASSET_DOMAIN_VEHICLE", result["domain"])
	assert.Equal(t, "ASSET_STATUS_AVAILABLE", result["status"])
	assert.Contains(t, result["identifier"], "savant-vision-")

	vehicle := result["vehicle"].(map[string]any)
	assert.Equal(t, "Toyota", vehicle["make"])
	assert.Equal(t, "Camry", vehicle["model"])
	assert.Equal(t, 2021, vehicle["year"])
	assert.Equal(t, "Silver", vehicle["color"])

	metadata := result["metadata"].(map[string]any)
	assert.Equal(t, "0.93", metadata["confidence_score"])
	assert.Equal(t, "18500", metadata["estimated_price"])

	assert.Contains(t, report, "Savant Report")
	assert.Contains(t, report, "0.93")

	require.Len(t, exec.requests, 1)
	assert.Equal(t, "POST", exec.requests[0].Method)
	assert.JSONEq(t, `{"image_source":"https://img.example.com/camry.jpg"}`, string(exec.requests[0].Body))
}

func TestVisionToolUnknownFields(t *testing.T) {
	exec := &fakeExecutor{responses: map[string]*flow.Result{
		"https://savant.example.com/perceive": {
			StatusCode: 200,
			Body:       []byte(`{"confidence_score":0.2}`),
		},
	}}

	tool := &VisionTool{BaseURL: "https://savant.example.com"}
	result, _, err := tool.Call(context.Background(), exec, map[string]any{
		"image_source": "https://img.example.com/blurry.jpg",
	})
	require.NoError(t, err)

	vehicle := result["vehicle"].(map[string]any)
	assert.Equal(t, "Unknown", vehicle["make"])
	assert.Equal(t, "Unknown", vehicle["model"])
	assert.Equal(t, "Unknown", vehicle["color"])
}

func TestVisionToolValidatesParams(t *testing.T) {
	exec := &fakeExecutor{}
	tool := &VisionTool{BaseURL: "https://savant.example.com"}

	_, _, err := tool.Call(context.Background(), exec, map[string]any{})
	require.Error(t, err)
	assert.Equal(t, types.ErrValidationError, types.CodeOf(err))
	assert.Empty(t, exec.requests, "no request may leave before validation passes")
}

func TestVisionToolOracleFailure(t *testing.T) {
	exec := &fakeExecutor{responses: map[string]*flow.Result{}}
	tool := &VisionTool{BaseURL: "https://savant.example.com"}

	_, _, err := tool.Call(context.Background(), exec, map[string]any{
		"image_source": "https://img.example.com/x.jpg",
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrNetworkError, types.CodeOf(err))
}

func TestVisionToolMalformedObservation(t *testing.T) {
	exec := &fakeExecutor{responses: map[string]*flow.Result{
		"https://savant.example.com/perceive": {StatusCode: 200, Body: []byte(`not json`)},
	}}
	tool := &VisionTool{BaseURL: "https://savant.example.com"}

	_, _, err := tool.Call(context.Background(), exec, map[string]any{
		"image_source": "https://img.example.com/x.jpg",
	})
	require.Error(t, err)
	assert.Equal(t, types.ErrProtocolViolation, types.CodeOf(err))
}
