// Package queue implements the hosted-queue-service collaborator
// behind a small interface: Receive drains a batch of carriers,
// Delete removes one after it has been fully processed. A Redis stream
// consumer group stands in for the managed queue, using
// XREADGROUP/XACK for at-least-once delivery with redelivery of
// unacknowledged entries.
package queue

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/dpreserve/drreplicator/common/logger"
	redisclient "github.com/dpreserve/drreplicator/common/redis"
	"github.com/dpreserve/drreplicator/internal/domain"
)

// Queue is the source queue collaborator: receive a batch of
// carriers, delete the ones that were fully processed.
type Queue interface {
	Receive(ctx context.Context, queueURL string, maxMessages int) ([]domain.MessageCarrier, error)
	Delete(ctx context.Context, queueURL string, receiptHandle string) error
}

const consumerGroup = "dr-replicator"

// wireMessage is the queue's JSON payload shape: a discriminator
// selecting InformationObjectMessage or ContentObjectMessage, each
// carrying a UUID ref. Unrecognized types decode to an absent message.
type wireMessage struct {
	Type string    `json:"type"`
	Ref  uuid.UUID `json:"ref"`
}

// RedisQueue implements Queue on top of a Redis stream consumer group.
type RedisQueue struct {
	client       *redisclient.Client
	log          *logger.Logger
	consumerName string
}

// NewRedisQueue creates a Redis-backed Queue. consumerName identifies
// this replicator instance within the consumer group.
func NewRedisQueue(client *redisclient.Client, consumerName string, log *logger.Logger) *RedisQueue {
	return &RedisQueue{client: client, log: log, consumerName: consumerName}
}

// Receive reads up to maxMessages new stream entries for queueURL,
// creating the consumer group on first use. Entries that fail to decode
// are returned with Decoded == nil; the Coordinator is
// responsible for leaving them unacknowledged.
func (q *RedisQueue) Receive(ctx context.Context, queueURL string, maxMessages int) ([]domain.MessageCarrier, error) {
	if err := q.client.CreateStreamGroup(ctx, queueURL, consumerGroup); err != nil {
		return nil, err
	}

	streams, err := q.client.ReadFromStreamGroup(ctx, consumerGroup, q.consumerName, queueURL, int64(maxMessages), 0)
	if err != nil {
		return nil, err
	}

	var carriers []domain.MessageCarrier
	for _, stream := range streams {
		for _, entry := range stream.Messages {
			carriers = append(carriers, q.decodeCarrier(queueURL, entry.ID, entry.Values))
		}
	}
	return carriers, nil
}

// decodeCarrier shapes one stream entry into a MessageCarrier. Decoded
// stays nil when the payload cannot be parsed; such carriers are never
// acknowledged, so the queue redelivers them.
func (q *RedisQueue) decodeCarrier(queueURL, entryID string, values map[string]interface{}) domain.MessageCarrier {
	carrier := domain.MessageCarrier{ReceiptHandle: entryID, QueueURL: queueURL}

	raw, ok := values["body"].(string)
	if !ok {
		q.log.Warn("message missing body field", "message_id", entryID)
		return carrier
	}

	var wm wireMessage
	if err := json.Unmarshal([]byte(raw), &wm); err != nil {
		q.log.Warn("failed to decode message", "message_id", entryID, "error", err)
		return carrier
	}

	kind, ok := messageKind(wm.Type)
	if !ok {
		q.log.Warn("unrecognized message type", "message_id", entryID, "type", wm.Type)
		return carrier
	}

	msg := domain.Message{Kind: kind, Ref: wm.Ref}
	carrier.Decoded = &msg
	return carrier
}

func messageKind(wireType string) (domain.MessageKind, bool) {
	switch wireType {
	case "InformationObjectMessage":
		return domain.InformationObjectMessageKind, true
	case "ContentObjectMessage":
		return domain.ContentObjectMessageKind, true
	default:
		return 0, false
	}
}

// Delete acknowledges (and thereby removes) a processed stream entry.
func (q *RedisQueue) Delete(ctx context.Context, queueURL string, receiptHandle string) error {
	return q.client.AckStreamMessage(ctx, queueURL, consumerGroup, receiptHandle)
}
