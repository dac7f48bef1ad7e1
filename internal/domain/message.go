package domain

import "github.com/google/uuid"

// MessageKind discriminates the two message types the queue carries
//. Unrecognized payloads decode to no message at all.
type MessageKind int

const (
	InformationObjectMessageKind MessageKind = iota
	ContentObjectMessageKind
)

// Message is a closed sum type: InformationObjectMessage(ref) or
// ContentObjectMessage(ref).
type Message struct {
	Kind MessageKind
	Ref  uuid.UUID
}

// CanonicalText returns a stable textual form used for batch-level
// deduplication. Two messages with the same kind and ref
// compare equal regardless of original JSON formatting.
func (m Message) CanonicalText() string {
	prefix := "IO:"
	if m.Kind == ContentObjectMessageKind {
		prefix = "CO:"
	}
	return prefix + m.Ref.String()
}

// MessageCarrier pairs a queue receipt handle with its decoded message.
// Decoded is nil when the payload failed to decode; such
// carriers are dropped without acknowledgement so the queue redelivers
// them.
type MessageCarrier struct {
	ReceiptHandle string
	QueueURL      string
	Decoded       *Message
}
