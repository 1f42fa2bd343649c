// Package events publishes round lifecycle events for front-ends and other
// off-chain consumers. Publishing is always best effort from the
// coordinator's point of view: the on-chain action is the source of truth.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Publisher is implemented by every event sink (NATS, the websocket hub, the
// no-op fallback).
type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// Envelope is the wire form shared by all sinks.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a payload in the standard envelope and marshals it.
func NewEnvelope(eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return json.Marshal(Envelope{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	})
}

// NATSPublisher publishes envelopes to <prefix>.<eventType> subjects.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
}

func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc, prefix: prefix}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	subject := fmt.Sprintf("%s.%s", p.prefix, eventType)
	data, err := NewEnvelope(eventType, payload)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	log.Debug().Str("subject", subject).Int("size", len(data)).Msg("published event")
	return nil
}

func (p *NATSPublisher) Close() {
	p.nc.Close()
}

// NopPublisher drops everything; used when no NATS URL is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	return nil
}

// MultiPublisher fans out to several sinks and returns the first error after
// attempting all of them.
type MultiPublisher struct {
	sinks []Publisher
}

func Multi(sinks ...Publisher) *MultiPublisher {
	return &MultiPublisher{sinks: sinks}
}

func (m *MultiPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Publish(ctx, eventType, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
