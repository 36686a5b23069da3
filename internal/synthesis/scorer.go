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

const defaultScorerTimeout = 30 * time.Second

// HTTPScorer rates images by calling a scoring backend. It satisfies
// quality.Scorer.
type HTTPScorer struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPScorer constructs a scorer client.
func NewHTTPScorer(baseURL string, timeout time.Duration) (*HTTPScorer, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, Wrap(ErrConfiguration, "scorer", "endpoint required", nil)
	}
	if timeout <= 0 {
		timeout = defaultScorerTimeout
	}
	return &HTTPScorer{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type scoreRequest struct {
	Image  []byte `json:"image"`
	Prompt string `json:"prompt"`
}

type scoreResponse struct {
	Score float64 `json:"score"`
	Error string  `json:"error"`
}

// Score returns the prompt similarity for one image.
func (s *HTTPScorer) Score(ctx context.Context, image []byte, prompt string) (float64, error) {
	if len(image) == 0 {
		return 0, Wrap(ErrValidation, "score", "image required", nil)
	}
	endpoint, err := url.JoinPath(s.baseURL, "/v1/score")
	if err != nil {
		return 0, Wrap(ErrConfiguration, "score", "build url", err)
	}
	encoded, err := json.Marshal(scoreRequest{Image: image, Prompt: prompt})
	if err != nil {
		return 0, Wrap(ErrValidation, "score", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return 0, Wrap(ErrValidation, "score", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, Wrap(ErrTimeout, "score", "request timed out", err)
		}
		return 0, Wrap(ErrTransient, "score", "request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, Wrap(ErrTransient, "score", "read response", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return 0, Wrap(ErrExternalTool, "score", fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	var decoded scoreResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return 0, Wrap(ErrExternalTool, "score", "decode response", err)
	}
	if decoded.Error != "" {
		return 0, Wrap(ErrExternalTool, "score", decoded.Error, nil)
	}
	return decoded.Score, nil
}
