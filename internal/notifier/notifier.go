// Package notifier implements the Change Notifier: it builds one
// ChangeEvent per successfully staged-and-committed object and hands
// them to the Publisher collaborator.
package notifier

import (
	"context"

	"github.com/dpreserve/drreplicator/common/events"
	"github.com/dpreserve/drreplicator/internal/domain"
)

// Notifier publishes change events for committed writes.
type Notifier struct {
	publisher events.Publisher
	topic     string
}

// New builds a Notifier bound to a destination topic.
func New(publisher events.Publisher, topic string) *Notifier {
	return &Notifier{publisher: publisher, topic: topic}
}

// NotifyCommitted publishes one event per write, tagged Created for
// objects that were missing and Updated for objects that had changed.
func (n *Notifier) NotifyCommitted(ctx context.Context, created, updated []domain.StagedWrite) error {
	evs := make([]domain.ChangeEvent, 0, len(created)+len(updated))
	for _, w := range created {
		evs = append(evs, domain.NewChangeEvent(w.Object, domain.Created))
	}
	for _, w := range updated {
		evs = append(evs, domain.NewChangeEvent(w.Object, domain.Updated))
	}
	return n.publisher.Publish(ctx, n.topic, evs)
}
