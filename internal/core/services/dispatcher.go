package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"qrdine/internal/core/contracts"
	"qrdine/internal/core/domain"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Publisher fans a domain event out to every connection in the resolved groups.
type Publisher interface {
	Publish(ctx context.Context, kind domain.EventKind, payload any, audiences ...domain.Audience) (PublishResult, error)
}

// PublishResult describes one publish call. Recipients == 0 is a normal outcome.
type PublishResult struct {
	Groups     []string
	Recipients int
	Dropped    int
	EmittedAt  time.Time
}

type Dispatcher struct {
	registry contracts.Registry
	log      *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

func NewDispatcher(log *slog.Logger, registry contracts.Registry) *Dispatcher {
	return &Dispatcher{
		log:      log,
		registry: registry,
		now:      time.Now,
	}
}

var _ Publisher = (*Dispatcher)(nil)

// Publish resolves every audience before emitting anything, so a bad audience
// produces no deliveries at all. A connection that is in several target groups
// receives the envelope once.
func (d *Dispatcher) Publish(
	ctx context.Context,
	kind domain.EventKind,
	payload any,
	audiences ...domain.Audience,
) (PublishResult, error) {
	ctx, span := tracer.Start(ctx, "Dispatcher.Publish", trace.WithAttributes(
		attribute.String("event", string(kind)),
		attribute.Int("audiences", len(audiences)),
	))
	defer span.End()

	groups := make([]string, 0, len(audiences))
	seen := make(map[string]struct{}, len(audiences))
	for _, a := range audiences {
		g, err := domain.Resolve(a)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "resolve audience failed")
			d.log.ErrorContext(ctx, "dispatcher - publish - resolve audience failed", "event", kind, "err", err)
			return PublishResult{}, err
		}
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		groups = append(groups, g)
	}

	res := PublishResult{Groups: groups, EmittedAt: d.stamp()}
	data, err := json.Marshal(domain.Envelope{Event: kind, Payload: payload, EmittedAt: res.EmittedAt})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal envelope failed")
		d.log.ErrorContext(ctx, "dispatcher - publish - marshal envelope failed", "event", kind, "err", err)
		return PublishResult{}, err
	}

	sent := make(map[string]struct{})
	for _, g := range groups {
		members := d.registry.MembersOf(g)
		if len(members) == 0 {
			d.log.DebugContext(ctx, "dispatcher - publish - no subscribers", "event", kind, "group", g)
			continue
		}
		for _, connID := range members {
			if _, dup := sent[connID]; dup {
				continue
			}
			sent[connID] = struct{}{}
			res.Recipients++
			if err := d.registry.Emit(ctx, connID, data); err != nil {
				res.Dropped++
				d.log.WarnContext(ctx, "dispatcher - publish - emit dropped", "event", kind, "group", g, "conn_id", connID, "err", err)
			}
		}
	}
	span.SetAttributes(
		attribute.StringSlice("groups", groups),
		attribute.Int("recipients", res.Recipients),
		attribute.Int("dropped", res.Dropped),
	)
	d.log.DebugContext(ctx, "dispatcher - publish - done", "event", kind, "groups", groups, "recipients", res.Recipients, "dropped", res.Dropped)
	return res, nil
}

// stamp never goes backwards, even if the wall clock does.
func (d *Dispatcher) stamp() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.now().UTC()
	if t.Before(d.last) {
		t = d.last
	}
	d.last = t
	return t
}
