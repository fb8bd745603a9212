// Package events provides event publishing for listing lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/catalog-ingestor/internal/logger"
)

// StreamName is the Redis stream listing events are published to.
const StreamName = "catalog:listing-events"

// asyncPublishTimeout is the context timeout for async publish operations.
const asyncPublishTimeout = 5 * time.Second

// EventType identifies a listing lifecycle event.
type EventType string

const (
	ListingCreated      EventType = "listing.created"
	ListingPriceChanged EventType = "listing.price_changed"
)

// ListingEvent is the payload published for downstream consumers. OldPrice is
// zero for creation events.
type ListingEvent struct {
	EventID     uuid.UUID `json:"event_id"`
	EventType   EventType `json:"event_type"`
	ListingID   string    `json:"listing_id"`
	Marketplace string    `json:"marketplace"`
	SourceURL   string    `json:"source_url"`
	OldPrice    float64   `json:"old_price,omitempty"`
	NewPrice    float64   `json:"new_price"`
	Currency    string    `json:"currency"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher publishes listing events to Redis Streams.
type Publisher struct {
	client *redis.Client
	log    logger.Logger
}

// NewPublisher creates a new event publisher.
// Returns nil if client is nil.
func NewPublisher(client *redis.Client, log logger.Logger) *Publisher {
	if client == nil {
		return nil
	}
	return &Publisher{
		client: client,
		log:    log,
	}
}

// Publish sends an event to the Redis stream.
func (p *Publisher) Publish(ctx context.Context, event ListingEvent) error {
	if p == nil || p.client == nil {
		return nil // No-op if publisher not configured
	}

	// Ensure event has ID and timestamp
	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamName,
		Values: map[string]any{
			"event": string(payload),
		},
	})

	if publishErr := result.Err(); publishErr != nil {
		if p.log != nil {
			p.log.Error("Failed to publish event",
				logger.String("event_type", string(event.EventType)),
				logger.String("listing_id", event.ListingID),
				logger.Error(publishErr),
			)
		}
		return fmt.Errorf("publish to stream: %w", publishErr)
	}

	if p.log != nil {
		p.log.Info("Published listing event",
			logger.String("event_type", string(event.EventType)),
			logger.String("listing_id", event.ListingID),
			logger.String("stream_id", result.Val()),
		)
	}

	return nil
}

// PublishAsync publishes an event asynchronously.
// Errors are logged but not returned.
func (p *Publisher) PublishAsync(event ListingEvent) {
	if p == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncPublishTimeout)
		defer cancel()

		if err := p.Publish(ctx, event); err != nil && p.log != nil {
			p.log.Error("Async publish failed",
				logger.String("event_type", string(event.EventType)),
				logger.String("listing_id", event.ListingID),
				logger.Error(err),
			)
		}
	}()
}
