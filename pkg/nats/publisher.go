package nats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abgdnv/productapi/pkg/config"
	"github.com/abgdnv/productapi/pkg/messaging"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sony/gobreaker/v2"
)

// streamPublisher is the part of jetstream.JetStream the publisher needs.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NatsPublisher publishes events to JetStream behind a circuit breaker,
// so a broker outage fails fast instead of stalling every caller.
type NatsPublisher struct {
	js streamPublisher
	cb *gobreaker.CircuitBreaker[*jetstream.PubAck]
}

var _ messaging.Publisher = (*NatsPublisher)(nil)

func NewNatsPublisher(js streamPublisher, cfg config.CircuitBreakerConfig, logger *slog.Logger) *NatsPublisher {
	st := gobreaker.Settings{
		Name:        "nats-publisher",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(counts.Requests >= cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(counts.Requests)*100 > float64(cfg.ErrorRatePercent))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &NatsPublisher{
		js: js,
		cb: gobreaker.NewCircuitBreaker[*jetstream.PubAck](st),
	}
}

func (p *NatsPublisher) Publish(ctx context.Context, event messaging.Event) error {
	data, err := event.Payload()
	if err != nil {
		return fmt.Errorf("failed to get event payload: %w", err)
	}
	_, err = p.cb.Execute(func() (*jetstream.PubAck, error) {
		return p.js.Publish(ctx, event.Subject(), data)
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Subject(), err)
	}
	return nil
}
