package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"easel/internal/config"
)

const userAgent = "Easel/0.1.0"

// Service is the notification surface exposed to the daemon.
type Service interface {
	NotifyRunStarted(ctx context.Context, batchID string, total int) error
	NotifyRunCompleted(ctx context.Context, batchID string, accepted, rejected int, duration time.Duration) error
	NotifyRunCancelled(ctx context.Context, batchID string, completed, total int) error
	NotifyRecoveredRun(ctx context.Context, batchID string, itemIndex, total int) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when
// configured. Without a topic a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		runLifecycle: cfg.Notifications.RunLifecycle,
		errors:       cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint     string
	client       *http.Client
	runLifecycle bool
	errors       bool
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, batchID string, total int) error {
	if !n.runLifecycle {
		return nil
	}
	data := payload{
		title:   "Easel - Run Started",
		message: fmt.Sprintf("Batch %s started: %d items", shortID(batchID), total),
		tags:    []string{"easel", "run", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, batchID string, accepted, rejected int, duration time.Duration) error {
	if !n.runLifecycle {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	data := payload{
		title:    "Easel - Run Complete",
		message:  fmt.Sprintf("Batch %s finished in %s: %d accepted, %d rejected", shortID(batchID), duration, accepted, rejected),
		tags:     []string{"easel", "run", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunCancelled(ctx context.Context, batchID string, completed, total int) error {
	if !n.runLifecycle {
		return nil
	}
	data := payload{
		title:   "Easel - Run Cancelled",
		message: fmt.Sprintf("Batch %s cancelled after %d of %d items", shortID(batchID), completed, total),
		tags:    []string{"easel", "run", "cancelled"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRecoveredRun(ctx context.Context, batchID string, itemIndex, total int) error {
	if !n.errors {
		return nil
	}
	data := payload{
		title:   "Easel - Interrupted Run Found",
		message: fmt.Sprintf("Batch %s was interrupted at item %d of %d", shortID(batchID), itemIndex, total),
		tags:    []string{"easel", "recovery"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	data := payload{
		title:    "Easel - Error",
		message:  builder.String(),
		tags:     []string{"easel", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Easel - Test",
		message:  "Notification system test",
		tags:     []string{"easel", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func shortID(batchID string) string {
	if len(batchID) > 8 {
		return batchID[:8]
	}
	return batchID
}

type noopService struct{}

func (noopService) NotifyRunStarted(context.Context, string, int) error { return nil }
func (noopService) NotifyRunCompleted(context.Context, string, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyRunCancelled(context.Context, string, int, int) error { return nil }
func (noopService) NotifyRecoveredRun(context.Context, string, int, int) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error           { return nil }
func (noopService) TestNotification(context.Context) error                     { return nil }
