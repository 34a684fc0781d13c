package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pulsegram/apiserver/internal/logging"
	"github.com/pulsegram/apiserver/types"
)

const (
	attrEventType   = "event_type"
	attrContentType = "content_type"
	jsonContentType = "application/json"
)

// PostEvents publishes and consumes post activity on a single channel.
type PostEvents struct {
	mq      *MQ
	channel string
	logger  logging.Logger
}

// NewPostEvents binds the activity channel. A nil logger discards output.
func NewPostEvents(m *MQ, channel string, logger logging.Logger) *PostEvents {
	if logger == nil {
		logger = logging.Discard()
	}
	return &PostEvents{mq: m, channel: channel, logger: logger}
}

// Publish encodes event as JSON and sends it to the activity channel.
func (e *PostEvents) Publish(ctx context.Context, event types.PostEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode post event: %w", err)
	}
	attrs := map[string]string{
		attrEventType:   string(event.Type),
		attrContentType: jsonContentType,
	}
	if _, err := e.mq.Publish(ctx, e.channel, data, attrs); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Tail delivers decoded events to fn until ctx is cancelled. Messages that
// cannot be decoded are logged, acknowledged and skipped so they are not
// redelivered forever.
func (e *PostEvents) Tail(ctx context.Context, fn func(ctx context.Context, event types.PostEvent) error) error {
	return e.mq.Subscribe(ctx, e.channel, func(ctx context.Context, msg Message) error {
		var event types.PostEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			e.logger.Warn(ctx, "dropping undecodable post event",
				"channel", e.channel,
				"message_id", msg.ID,
				"event_type", msg.Attributes[attrEventType],
				"error", err,
			)
			return nil
		}
		return fn(ctx, event)
	})
}
