package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultHTTPTimeout = 10 * time.Minute

// HTTPPipeline drives a generation backend over its HTTP API.
type HTTPPipeline struct {
	baseURL    string
	httpClient *http.Client
	interrupt  *InterruptFlag
}

// Option customizes the pipeline client.
type Option func(*HTTPPipeline)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *HTTPPipeline) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout. Generation requests can
// legitimately take minutes on slow hardware.
func WithTimeout(timeout time.Duration) Option {
	return func(p *HTTPPipeline) {
		if timeout > 0 {
			p.httpClient.Timeout = timeout
		}
	}
}

// NewHTTPPipeline constructs a pipeline client. The interrupt flag may
// be nil when no cooperative cancellation is needed.
func NewHTTPPipeline(baseURL string, interrupt *InterruptFlag, opts ...Option) (*HTTPPipeline, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, Wrap(ErrConfiguration, "pipeline", "endpoint required", nil)
	}
	pipeline := &HTTPPipeline{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		interrupt:  interrupt,
	}
	for _, opt := range opts {
		opt(pipeline)
	}
	return pipeline, nil
}

type generateResponse struct {
	Image    []byte            `json:"image"`
	Mean     float64           `json:"mean"`
	StdDev   float64           `json:"std_dev"`
	Seed     int64             `json:"seed"`
	Metadata map[string]string `json:"metadata"`
	Error    string            `json:"error"`
}

// Invoke submits one generation request. It refuses to start while the
// interrupt flag is raised and checks it again before decoding so a
// cancellation that lands mid-request still wins.
func (p *HTTPPipeline) Invoke(ctx context.Context, req Request) (Result, error) {
	var empty Result
	if strings.TrimSpace(req.Prompt) == "" && len(req.InputImage) == 0 {
		return empty, Wrap(ErrValidation, "generate", "prompt or input image required", nil)
	}
	if p.interrupted() {
		return empty, Wrap(ErrInterrupted, "generate", "cancellation requested", nil)
	}

	body, err := p.post(ctx, "/v1/generate", req)
	if err != nil {
		return empty, err
	}
	if p.interrupted() {
		return empty, Wrap(ErrInterrupted, "generate", "cancellation requested", nil)
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, Wrap(ErrExternalTool, "generate", "decode response", err)
	}
	if decoded.Error != "" {
		return empty, Wrap(ErrExternalTool, "generate", decoded.Error, nil)
	}
	if len(decoded.Image) == 0 {
		return empty, Wrap(ErrExternalTool, "generate", "empty image in response", nil)
	}
	result := Result{
		Image:    decoded.Image,
		Seed:     decoded.Seed,
		Metadata: decoded.Metadata,
	}
	result.Stats.Mean = decoded.Mean
	result.Stats.StdDev = decoded.StdDev
	return result, nil
}

// Release tells the backend to drop per-item state. Failures are
// reported but never abort a run.
func (p *HTTPPipeline) Release(ctx context.Context) error {
	_, err := p.post(ctx, "/v1/release", struct{}{})
	return err
}

func (p *HTTPPipeline) post(ctx context.Context, path string, payload any) ([]byte, error) {
	endpoint, err := url.JoinPath(p.baseURL, path)
	if err != nil {
		return nil, Wrap(ErrConfiguration, "pipeline", "build url", err)
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, Wrap(ErrValidation, "pipeline", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, Wrap(ErrValidation, "pipeline", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, Wrap(ErrTimeout, "pipeline", "request timed out", err)
		}
		if errors.Is(err, context.Canceled) {
			return nil, Wrap(ErrInterrupted, "pipeline", "request canceled", err)
		}
		return nil, Wrap(ErrTransient, "pipeline", "request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Wrap(ErrTransient, "pipeline", "read response", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, Wrap(ErrExternalTool, "pipeline", fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, Wrap(ErrValidation, "pipeline", fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	return body, nil
}

func (p *HTTPPipeline) interrupted() bool {
	return p.interrupt != nil && p.interrupt.Active()
}
