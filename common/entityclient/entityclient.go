// Package entityclient is the upstream preservation API collaborator
//: entity descriptors, representation membership, bitstream
// descriptors, metadata fragments, and bitstream byte streaming. It is
// consulted by the Entity Resolver and Staging Transfer.
package entityclient

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/dpreserve/drreplicator/internal/domain"
)

// Client is the upstream entity/metadata/bitstream collaborator.
type Client interface {
	// EntityByTypeAndRef fetches the entity descriptor for ref. kind is
	// domain.InformationObject or domain.ContentObject. parentHint, when
	// non-nil, is passed through for upstream APIs that need the owning
	// IO to resolve a CO.
	EntityByTypeAndRef(ctx context.Context, kind domain.EntityKind, ref uuid.UUID, parentHint *uuid.UUID) (domain.Entity, error)

	// BitstreamInfo returns every bitstream descriptor for a Content
	// Object.
	BitstreamInfo(ctx context.Context, coRef uuid.UUID) ([]domain.BitstreamInfo, error)

	// MetadataForEntity fetches the raw XIP metadata fragments for an
	// entity, discriminated by entity.Kind.
	MetadataForEntity(ctx context.Context, entity domain.Entity) (domain.EntityMetadata, error)

	// RepresentationURLsForIo lists the representation URLs for an IO.
	// Each URL's trailing two path segments encode (type, index), e.g.
	// ".../preservation/1".
	RepresentationURLsForIo(ctx context.Context, ioRef uuid.UUID) ([]string, error)

	// ContentObjectsFromRepresentation lists the CO refs belonging to
	// one (type, index) representation of an IO.
	ContentObjectsFromRepresentation(ctx context.Context, ioRef uuid.UUID, repType domain.RepresentationType, index int) ([]uuid.UUID, error)

	// StreamBitstream copies the bitstream payload at url into sink.
	StreamBitstream(ctx context.Context, url string, sink io.Writer) error
}
