package synthesis_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"easel/internal/synthesis"
)

func encodeImage(t *testing.T, data []byte) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString(data)
}

func TestInvokeDecodesBackendResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req synthesis.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Prompt != "a lighthouse at dusk" {
			t.Errorf("unexpected prompt %q", req.Prompt)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"image":    encodeImage(t, []byte("png-bytes")),
			"mean":     0.48,
			"std_dev":  0.21,
			"seed":     int64(12345),
			"metadata": map[string]string{"sampler": "euler"},
		})
	}))
	defer server.Close()

	pipeline, err := synthesis.NewHTTPPipeline(server.URL, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	result, err := pipeline.Invoke(context.Background(), synthesis.Request{Prompt: "a lighthouse at dusk"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if string(result.Image) != "png-bytes" {
		t.Fatalf("unexpected image bytes %q", result.Image)
	}
	if result.Stats.Mean != 0.48 || result.Stats.StdDev != 0.21 {
		t.Fatalf("unexpected stats %+v", result.Stats)
	}
	if result.Seed != 12345 {
		t.Fatalf("unexpected seed %d", result.Seed)
	}
	if result.Metadata["sampler"] != "euler" {
		t.Fatalf("unexpected metadata %v", result.Metadata)
	}
}

func TestInvokeServerErrorIsExternalTool(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	pipeline, err := synthesis.NewHTTPPipeline(server.URL, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	_, err = pipeline.Invoke(context.Background(), synthesis.Request{Prompt: "x"})
	if !errors.Is(err, synthesis.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if !synthesis.Retryable(err) {
		t.Fatal("backend errors should be retryable")
	}
}

func TestInvokeBadRequestIsValidation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown sampler", http.StatusBadRequest)
	}))
	defer server.Close()

	pipeline, err := synthesis.NewHTTPPipeline(server.URL, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	_, err = pipeline.Invoke(context.Background(), synthesis.Request{Prompt: "x"})
	if !errors.Is(err, synthesis.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if synthesis.Retryable(err) {
		t.Fatal("validation errors should not be retryable")
	}
}

func TestInvokeUnreachableBackendIsTransient(t *testing.T) {
	pipeline, err := synthesis.NewHTTPPipeline("http://127.0.0.1:1", nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	_, err = pipeline.Invoke(context.Background(), synthesis.Request{Prompt: "x"})
	if !errors.Is(err, synthesis.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestInvokeRefusesWhileInterrupted(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	var interrupt synthesis.InterruptFlag
	interrupt.Set()
	pipeline, err := synthesis.NewHTTPPipeline(server.URL, &interrupt)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	_, err = pipeline.Invoke(context.Background(), synthesis.Request{Prompt: "x"})
	if !errors.Is(err, synthesis.ErrInterrupted) {
		t.Fatalf("expected interrupted error, got %v", err)
	}
	if called {
		t.Fatal("backend should not be called while interrupted")
	}
	if synthesis.Retryable(err) {
		t.Fatal("interruption should not be retryable")
	}
}

func TestInvokeEmptyPromptRejected(t *testing.T) {
	pipeline, err := synthesis.NewHTTPPipeline("http://127.0.0.1:1", nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	_, err = pipeline.Invoke(context.Background(), synthesis.Request{})
	if !errors.Is(err, synthesis.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPrepareRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/prepare" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"conditioning": encodeImage(t, []byte("cond-bytes")),
		})
	}))
	defer server.Close()

	pipeline, err := synthesis.NewHTTPPipeline(server.URL, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	conditioning, err := pipeline.Prepare(context.Background(), []byte("input"))
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if string(conditioning) != "cond-bytes" {
		t.Fatalf("unexpected conditioning %q", conditioning)
	}
}

func TestScorerRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/score" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"score": 0.82})
	}))
	defer server.Close()

	scorer, err := synthesis.NewHTTPScorer(server.URL, 0)
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}
	score, err := scorer.Score(context.Background(), []byte("img"), "prompt")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score != 0.82 {
		t.Fatalf("unexpected score %.2f", score)
	}
}

func TestScorerBackendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "embedding model missing"})
	}))
	defer server.Close()

	scorer, err := synthesis.NewHTTPScorer(server.URL, 0)
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}
	_, err = scorer.Score(context.Background(), []byte("img"), "prompt")
	if !errors.Is(err, synthesis.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}
