package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"qrdine/internal/core/domain"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClient struct {
	id  string
	err error

	mu   sync.Mutex
	sent [][]byte
}

func newFakeClient(id string) *fakeClient { return &fakeClient{id: id} }

func (c *fakeClient) ID() string { return c.id }

func (c *fakeClient) Send(_ context.Context, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeClient) Close() {}

type receivedEnvelope struct {
	Event     domain.EventKind `json:"event"`
	Payload   json.RawMessage  `json:"payload"`
	EmittedAt time.Time        `json:"emittedAt"`
}

func (c *fakeClient) envelopes(t *testing.T) []receivedEnvelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]receivedEnvelope, 0, len(c.sent))
	for _, raw := range c.sent {
		var env receivedEnvelope
		require.NoError(t, json.Unmarshal(raw, &env))
		out = append(out, env)
	}
	return out
}

func (c *fakeClient) events(t *testing.T) []domain.EventKind {
	t.Helper()
	var out []domain.EventKind
	for _, env := range c.envelopes(t) {
		out = append(out, env.Event)
	}
	return out
}

type publishedEvent struct {
	Kind      domain.EventKind
	Payload   any
	Audiences []domain.Audience
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, kind domain.EventKind, payload any, audiences ...domain.Audience) (PublishResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return PublishResult{}, p.err
	}
	p.events = append(p.events, publishedEvent{Kind: kind, Payload: payload, Audiences: audiences})
	return PublishResult{Recipients: 1}, nil
}

func (p *recordingPublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}
