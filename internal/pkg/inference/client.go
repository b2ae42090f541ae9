// Package inference holds the contract to the external voice inference
// service. Dispatch is at-least-once: the service must treat the request id
// as an idempotency key, since a stuck conversion is re-dispatched after its
// backoff window.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/StefanHaberl/VoiceFox/internal/pkg/env"
)

// DispatchRequest describes one conversion job handed to the inference
// service. RequestID doubles as correlation id for the callback.
type DispatchRequest struct {
	RequestID     string `json:"request_id"`
	AudioLocation string `json:"audio_location"`
	ModelLocation string `json:"model_location"`
	Transposition int    `json:"transposition"`
	UsePreview    bool   `json:"use_preview"`
}

// Dispatcher is the outbound contract the conversion dispatcher calls.
type Dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) error
}

// Callback status values reported by the inference service.
const (
	CallbackStatusSuccess = "SUCCESS"
	CallbackStatusFailed  = "FAILED"
)

// Callback is the asynchronous result message posted back by the inference
// service once a job finishes.
type Callback struct {
	Status        string    `json:"status" validate:"required,oneof=SUCCESS FAILED"`
	RequestID     string    `json:"request_id" validate:"required,uuid4"`
	FinishedAtUTC time.Time `json:"finished_at_utc" validate:"required"`
	ErrorMessage  string    `json:"error_message,omitempty"`
}

// HTTPClient dispatches jobs over the internal HTTP channel, authenticated by
// a shared API key. Each call carries its own bounded timeout so one slow
// dispatch cannot stall a whole poll batch.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates the production dispatch client from environment
// configuration.
func NewHTTPClient() *HTTPClient {
	timeout := env.GetEnvDuration("INFERENCE_DISPATCH_TIMEOUT", 10*time.Second)
	return &HTTPClient{
		baseURL: env.GetEnv("INFERENCE_BASE_URL", "http://localhost:9000"),
		apiKey:  env.GetEnv("INFERENCE_API_KEY", ""),
		client:  &http.Client{Timeout: timeout},
	}
}

// Dispatch hands one job to the inference service. Any non-2xx response is
// an error; the caller decides between retry and terminal failure.
func (c *HTTPClient) Dispatch(ctx context.Context, req DispatchRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode dispatch request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/convert", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build dispatch request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("dispatch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("inference service rejected dispatch %s: status %d", req.RequestID, resp.StatusCode)
	}
	return nil
}
