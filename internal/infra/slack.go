package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/humaxai2025/flowmode/internal/domain"
	"github.com/humaxai2025/flowmode/internal/duration"
)

const slackTimeout = 10 * time.Second

// SlackSink implements domain.WebhookSink by posting to a Slack incoming
// webhook. Deliveries run in the background; Flush waits for them.
type SlackSink struct {
	url    string
	client *http.Client
	logger *zap.Logger

	wg sync.WaitGroup
}

// NewSlackSink creates a sink for the given webhook URL.
func NewSlackSink(url string, logger *zap.Logger) *SlackSink {
	return NewSlackSinkWithClient(url, &http.Client{Timeout: slackTimeout}, logger)
}

// NewSlackSinkWithClient creates a sink with a custom HTTP client (for testing).
func NewSlackSinkWithClient(url string, client *http.Client, logger *zap.Logger) *SlackSink {
	return &SlackSink{url: url, client: client, logger: logger}
}

// SessionStarted announces the focus session.
func (s *SlackSink) SessionStarted(rec domain.SessionRecord) {
	text := "In flow mode, will reply later."
	if rec.Task != "" {
		text = fmt.Sprintf("In flow mode (%s), will reply later.", rec.Task)
	}
	s.post(text)
}

// SessionEnded reports the outcome.
func (s *SlackSink) SessionEnded(rec domain.SessionRecord) {
	text := fmt.Sprintf("Out of flow mode: %s after %s.", rec.Outcome, duration.Format(rec.Elapsed()))
	if rec.Task != "" {
		text = fmt.Sprintf("Out of flow mode (%s): %s after %s.", rec.Task, rec.Outcome, duration.Format(rec.Elapsed()))
	}
	s.post(text)
}

// Flush waits up to timeout for in-flight deliveries. It reports whether
// all of them finished.
func (s *SlackSink) Flush(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		s.logger.Warn("slack deliveries still pending at exit")
		return false
	}
}

func (s *SlackSink) post(text string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.deliver(text); err != nil {
			s.logger.Warn("slack webhook delivery failed", zap.Error(err))
			return
		}
		s.logger.Debug("slack webhook delivered", zap.String("text", text))
	}()
}

func (s *SlackSink) deliver(text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), slackTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack returned %s", resp.Status)
	}
	return nil
}

// Ensure SlackSink implements domain.WebhookSink.
var _ domain.WebhookSink = (*SlackSink)(nil)
