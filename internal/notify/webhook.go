package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/model"
)

// Sink is one downstream that accepts events.
type Sink interface {
	Name() string
	Ready() bool
	Acquire() bool
	Deliver(ctx context.Context, ev model.Event) error
}

// WebhookSink POSTs events as JSON to an HTTP endpoint behind a circuit breaker.
type WebhookSink struct {
	name   string
	url    string
	token  string
	client *http.Client
	br     *MicroBreaker
}

type WebhookConfig struct {
	Name          string
	URL           string
	Token         string
	TimeoutMs     int
	FailThreshold int
	OpenForMs     int
}

func NewWebhookSink(c WebhookConfig) *WebhookSink {
	if c.TimeoutMs <= 0 {
		c.TimeoutMs = 3000
	}

	if c.FailThreshold <= 0 {
		c.FailThreshold = 3
	}

	if c.OpenForMs <= 0 {
		c.OpenForMs = 15000
	}

	return &WebhookSink{
		name:   c.Name,
		url:    c.URL,
		token:  c.Token,
		client: &http.Client{Timeout: time.Duration(c.TimeoutMs) * time.Millisecond},
		br:     NewMicroBreaker(c.FailThreshold, time.Duration(c.OpenForMs)*time.Millisecond),
	}
}

func (s *WebhookSink) Name() string  { return s.name }
func (s *WebhookSink) Ready() bool   { return s.br.Ready() }
func (s *WebhookSink) Acquire() bool { return s.br.TryAcquire() }

func (s *WebhookSink) Deliver(ctx context.Context, ev model.Event) error {
	if err := s.post(ctx, ev); err != nil {
		s.br.OnFailure()
		return err
	}

	s.br.OnSuccess()

	return nil
}

func (s *WebhookSink) post(ctx context.Context, ev model.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(b))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Nexogym-Event", string(ev.Kind))
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return err
	}

	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return fmt.Errorf("sink=%s status=%d", s.name, res.StatusCode)
	}

	return nil
}
