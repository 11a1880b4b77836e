package tools

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aurahive/paygate/flow"
	"github.com/aurahive/paygate/types"
	"github.com/aurahive/paygate/utils"
)

// VisionTool routes an image to the remote vision oracle and shapes the
// observation into a versioned asset document.
type VisionTool struct {
	// BaseURL of the vision oracle node.
	BaseURL string
}

type visionParams struct {
	ImageSource string `json:"image_source" validate:"required"`
}

// visionObservation is the oracle's raw answer.
type visionObservation struct {
	Make            string  `json:"make"`
	Model           string  `json:"model"`
	Year            int     `json:"year"`
	Color           string  `json:"color"`
	EstimatedPrice  float64 `json:"estimated_price"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// Name implements Tool.
func (t *VisionTool) Name() string { return "verify_asset_quality" }

// Call implements Tool.
func (t *VisionTool) Call(ctx context.Context, exec Executor, params map[string]any) (map[string]any, string, error) {
	var p visionParams
	if err := decodeParams(params, &p); err != nil {
		return nil, "", err
	}

	body, _ := json.Marshal(map[string]string{"image_source": p.ImageSource})
	res, err := exec.Execute(ctx, &flow.Request{
		Method: http.MethodPost,
		URL:    t.BaseURL + "/perceive",
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   body,
	})
	if err != nil {
		return nil, "", err
	}
	if res.StatusCode != http.StatusOK {
		return nil, "", &types.Error{
			Code:    types.ErrNetworkError,
			Message: fmt.Sprintf("vision oracle returned status %d", res.StatusCode),
		}
	}

	var obs visionObservation
	if err := json.Unmarshal(res.Body, &obs); err != nil {
		return nil, "", &types.Error{Code: types.ErrProtocolViolation, Message: "malformed vision observation", Err: err}
	}

	asset := map[string]any{
		"identifier": "savant-vision-" + randomSuffix(),
		"domain":     "ASSET_DOMAIN_VEHICLE",
		"status":     "ASSET_STATUS_AVAILABLE",
		"vehicle": map[string]any{
			"make":  orUnknown(obs.Make),
			"model": orUnknown(obs.Model),
			"year":  obs.Year,
			"color": orUnknown(obs.Color),
		},
		"metadata": map[string]any{
			"confidence_score": fmt.Sprintf("%v", obs.ConfidenceScore),
			"estimated_price":  fmt.Sprintf("%v", obs.EstimatedPrice),
		},
	}

	report := fmt.Sprintf(
		"[Savant Report]\nVerified asset quality for %s.\nDomain: ASSET_DOMAIN_VEHICLE. Confidence: %v.",
		p.ImageSource, obs.ConfidenceScore,
	)
	return asset, report, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func randomSuffix() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// decodeParams round-trips loosely typed parameters into a tagged struct
// and runs validator tags against it.
func decodeParams(params map[string]any, out interface{}) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return &types.Error{Code: types.ErrValidationError, Message: "unencodable parameters", Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &types.Error{Code: types.ErrValidationError, Message: "malformed parameters", Err: err}
	}
	if err := utils.ValidateStruct(out); err != nil {
		return &types.Error{Code: types.ErrValidationError, Message: "parameter validation failed", Err: err}
	}
	return nil
}
