package services

import (
	"context"
	"encoding/json"

	redisbus "github.com/yungbote/mes-backend/internal/clients/redis"
	"github.com/yungbote/mes-backend/internal/domain/production"
	"github.com/yungbote/mes-backend/internal/observability"
	"github.com/yungbote/mes-backend/internal/pkg/ctxutil"
	"github.com/yungbote/mes-backend/internal/pkg/logger"
)

// EventPublisher fans committed ledger events out to subscribers. Publication
// is best effort; failures are logged and counted, never returned to the
// command caller.
type EventPublisher interface {
	Publish(ctx context.Context, events []production.Event)
}

type busPublisher struct {
	log     *logger.Logger
	bus     redisbus.EventBus
	metrics *observability.Metrics
}

func NewEventPublisher(baseLog *logger.Logger, bus redisbus.EventBus, metrics *observability.Metrics) EventPublisher {
	if bus == nil {
		return NoopEventPublisher{}
	}
	return &busPublisher{
		log:     baseLog.With("service", "EventPublisher"),
		bus:     bus,
		metrics: metrics,
	}
}

func (p *busPublisher) Publish(ctx context.Context, events []production.Event) {
	for _, ev := range events {
		env, err := Envelope(ev)
		if err != nil {
			p.log.Warn("encode ledger event failed", append(ctxutil.LogFields(ctx), "type", ev.EventType(), "error", err)...)
			p.metrics.IncEventPublished(ev.EventType(), "encode_error")
			continue
		}
		if err := p.bus.Publish(ctx, env); err != nil {
			p.log.Warn("publish ledger event failed", append(ctxutil.LogFields(ctx), "type", env.Type, "aggregate_id", env.AggregateID, "error", err)...)
			p.metrics.IncEventPublished(env.Type, "error")
			continue
		}
		p.metrics.IncEventPublished(env.Type, "ok")
	}
}

// Envelope encodes one event for the bus.
func Envelope(ev production.Event) (redisbus.Envelope, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return redisbus.Envelope{}, err
	}
	return redisbus.Envelope{
		Type:        ev.EventType(),
		AggregateID: ev.AggregateID(),
		OccurredAt:  ev.OccurredAt(),
		Payload:     raw,
	}, nil
}

type NoopEventPublisher struct{}

func (NoopEventPublisher) Publish(context.Context, []production.Event) {}
