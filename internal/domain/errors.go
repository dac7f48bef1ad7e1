package domain

import "errors"

// Pipeline error kinds. Callers wrap these with fmt.Errorf("...: %w", Err*)
// to attach context while keeping errors.Is checks working.
var (
	// ErrDecode marks a message that failed to decode. The carrier is
	// skipped without acknowledgement so the queue redelivers it.
	ErrDecode = errors.New("decode error")

	// ErrUpstream marks a network or protocol failure talking to the
	// entity service. The batch aborts without acknowledgement.
	ErrUpstream = errors.New("upstream error")

	// ErrSchema marks composed metadata that failed schema validation.
	ErrSchema = errors.New("schema error")

	// ErrInvariant marks a violated data-model invariant: missing
	// parent, disagreeing bitstream identifiers, multiple
	// representation groups, or a missing SourceID.
	ErrInvariant = errors.New("invariant error")

	// ErrStorage marks an OCFL commit or local write failure.
	ErrStorage = errors.New("storage error")

	// ErrNotify marks an event-publish failure after commit.
	ErrNotify = errors.New("notify error")
)
