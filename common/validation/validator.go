// Package validation is the XIP-schema validation collaborator:
// an external concern, used through a narrow interface so the composer
// never needs to know how schema binding is implemented.
package validation

import "context"

// Validator checks a serialized XIP envelope against the v7 schema.
type Validator interface {
	Validate(ctx context.Context, xmlBytes []byte) error
}

// NoopValidator is a Validator that always succeeds. bootstrap.Setup
// always wires it into the composer; this repository has no Validator
// backed by the XIP v7 XSD, so composed envelopes are not checked
// against the schema at runtime.
type NoopValidator struct{}

func (NoopValidator) Validate(ctx context.Context, xmlBytes []byte) error { return nil }
