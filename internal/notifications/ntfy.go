package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hopper/internal/config"
	"hopper/internal/scheduler"
)

const userAgent = "hopper/1.0"

// Notifier delivers operator alerts.
type Notifier interface {
	NotifyBatch(ctx context.Context, report scheduler.BatchReport) error
	NotifyError(ctx context.Context, err error, label string) error
	Test(ctx context.Context) error
}

// New builds an ntfy notifier, or a no-op one when cfg has no topic.
func New(cfg config.Notifications) Notifier {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noop{}
	}
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfy{
		endpoint:     topic,
		failuresOnly: cfg.FailuresOnly,
		client:       &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfy struct {
	endpoint     string
	failuresOnly bool
	client       *http.Client
}

func (n *ntfy) NotifyBatch(ctx context.Context, report scheduler.BatchReport) error {
	failed := report.Invalid + report.Unresolved
	if report.Files == 0 || (n.failuresOnly && failed == 0) {
		return nil
	}
	duration := report.Duration.Round(time.Millisecond)
	msg := message{
		title: "Hopper - Batch Complete",
		body:  fmt.Sprintf("Processed %d files in %s", report.Files, duration),
		tags:  []string{"hopper", "batch", "completed"},
	}
	if failed > 0 {
		msg.title = "Hopper - Batch Complete (with failures)"
		msg.body = fmt.Sprintf("Processed %d files in %s: %d valid, %d invalid, %d unresolved",
			report.Files, duration, report.Valid, report.Invalid, report.Unresolved)
		msg.tags = []string{"hopper", "batch", "failures"}
	}
	if report.Unresolved > 0 {
		msg.priority = "high"
	}
	return n.send(ctx, msg)
}

func (n *ntfy) NotifyError(ctx context.Context, err error, label string) error {
	var b strings.Builder
	b.WriteString("Error")
	if label = strings.TrimSpace(label); label != "" {
		b.WriteString(" while ")
		b.WriteString(label)
	}
	b.WriteString(": ")
	if err != nil {
		b.WriteString(strings.TrimSpace(err.Error()))
	} else {
		b.WriteString("unknown")
	}
	return n.send(ctx, message{
		title:    "Hopper - Error",
		body:     b.String(),
		tags:     []string{"hopper", "error"},
		priority: "high",
	})
}

func (n *ntfy) Test(ctx context.Context) error {
	return n.send(ctx, message{
		title:    "Hopper - Test",
		body:     "Notification test from hopper",
		tags:     []string{"hopper", "test"},
		priority: "low",
	})
}

func (n *ntfy) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", msg.title)
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
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

type noop struct{}

func (noop) NotifyBatch(context.Context, scheduler.BatchReport) error { return nil }
func (noop) NotifyError(context.Context, error, string) error         { return nil }
func (noop) Test(context.Context) error                               { return nil }
