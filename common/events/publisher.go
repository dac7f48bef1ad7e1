// Package events is the destination pub/sub collaborator: change
// events are published as JSON messages to a topic.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	redisclient "github.com/dpreserve/drreplicator/common/redis"
	"github.com/dpreserve/drreplicator/internal/domain"
)

// snsMessage is the outbound wire shape: entityType, ioRef, objectType,
// status, bitstreamName.
type snsMessage struct {
	EntityType    string `json:"entityType"`
	IoRef         string `json:"ioRef"`
	ObjectType    string `json:"objectType"`
	Status        string `json:"status"`
	BitstreamName string `json:"bitstreamName"`
}

// Publisher publishes a batch of change events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, events []domain.ChangeEvent) error
}

// RedisPublisher implements Publisher over a Redis pub/sub channel,
// JSON-encoding and PUBLISHing one message per event.
type RedisPublisher struct {
	client *redisclient.Client
}

// NewRedisPublisher builds a Publisher.
func NewRedisPublisher(client *redisclient.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish sends one message per event. Empty lists are a no-op.
func (p *RedisPublisher) Publish(ctx context.Context, topic string, events []domain.ChangeEvent) error {
	if len(events) == 0 {
		return nil
	}

	for _, e := range events {
		wire := snsMessage{
			EntityType:    e.EntityType,
			IoRef:         e.IoRef.String(),
			ObjectType:    e.ObjectType.String(),
			Status:        e.Status.String(),
			BitstreamName: e.Identifier,
		}
		payload, err := json.Marshal(wire)
		if err != nil {
			return fmt.Errorf("%w: marshal change event: %v", domain.ErrNotify, err)
		}
		if err := p.client.PublishEvent(ctx, topic, string(payload)); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrNotify, err)
		}
	}

	return nil
}
