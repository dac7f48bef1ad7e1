// Package resolver implements the Entity Resolver: it expands a
// decoded queue Message into the DR Objects that represent it, fetching
// whatever upstream data is needed along the way. Independent
// per-message work inside a batch runs in parallel via errgroup,
// bounded so one pathological batch cannot open unbounded upstream
// connections.
package resolver

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dpreserve/drreplicator/common/entityclient"
	"github.com/dpreserve/drreplicator/internal/domain"
	"github.com/dpreserve/drreplicator/internal/pathplan"
	"github.com/dpreserve/drreplicator/internal/xip"
)

const maxParallelResolves = 8

// Resolver expands messages into DR Objects.
type Resolver struct {
	client   entityclient.Client
	composer *xip.Composer
}

// New builds a Resolver.
func New(client entityclient.Client, composer *xip.Composer) *Resolver {
	return &Resolver{client: client, composer: composer}
}

// ResolveAll resolves every message in parallel (bounded) and flattens
// the results into one candidate set; any failure aborts the whole
// batch before anything is acknowledged.
func (r *Resolver) ResolveAll(ctx context.Context, messages []domain.Message) ([]domain.DRObject, error) {
	results := make([][]domain.DRObject, len(messages))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(maxParallelResolves)

	for i, msg := range messages {
		i, msg := i, msg
		group.Go(func() error {
			objs, err := r.Resolve(gctx, msg)
			if err != nil {
				return err
			}
			results[i] = objs
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	var all []domain.DRObject
	for _, objs := range results {
		all = append(all, objs...)
	}
	return all, nil
}

// Resolve expands a single message into its DR Objects.
func (r *Resolver) Resolve(ctx context.Context, msg domain.Message) ([]domain.DRObject, error) {
	switch msg.Kind {
	case domain.InformationObjectMessageKind:
		return r.resolveIO(ctx, msg.Ref)
	case domain.ContentObjectMessageKind:
		return r.resolveCO(ctx, msg.Ref)
	default:
		return nil, fmt.Errorf("%w: unknown message kind", domain.ErrInvariant)
	}
}

func (r *Resolver) resolveIO(ctx context.Context, ref uuid.UUID) ([]domain.DRObject, error) {
	entity, err := r.client.EntityByTypeAndRef(ctx, domain.InformationObject, ref, nil)
	if err != nil {
		return nil, err
	}

	metadata, err := r.client.MetadataForEntity(ctx, entity)
	if err != nil {
		return nil, err
	}

	sourceID, ok := metadata.SourceID()
	if !ok {
		return nil, fmt.Errorf("%w: IO %s missing SourceID", domain.ErrInvariant, ref)
	}

	xmlBytes, digest, err := r.composer.Compose(ctx, metadata)
	if err != nil {
		return nil, err
	}

	obj := &domain.MetadataObject{
		IoRef:           ref,
		Filename:        "IO_Metadata.xml",
		Digest:          digest,
		XMLBytes:        xmlBytes,
		DestinationPath: pathplan.IOMetadataPath(ref),
		Identifier:      sourceID,
	}
	return []domain.DRObject{obj}, nil
}

func (r *Resolver) resolveCO(ctx context.Context, ref uuid.UUID) ([]domain.DRObject, error) {
	bitstreams, err := r.client.BitstreamInfo(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(bitstreams) == 0 {
		return nil, fmt.Errorf("%w: CO %s has no bitstreams", domain.ErrInvariant, ref)
	}

	parentRef := bitstreams[0].ParentRef

	entity, err := r.client.EntityByTypeAndRef(ctx, domain.ContentObject, ref, &parentRef)
	if err != nil {
		return nil, err
	}
	if entity.Parent == nil {
		return nil, fmt.Errorf("%w: CO %s has no parent", domain.ErrInvariant, ref)
	}
	ioRef := *entity.Parent

	group, err := r.resolveRepresentationGroup(ctx, ioRef, ref)
	if err != nil {
		return nil, err
	}

	coIdentifier, err := coIdentifierFromBitstreams(bitstreams)
	if err != nil {
		return nil, err
	}

	metadata, err := r.client.MetadataForEntity(ctx, entity)
	if err != nil {
		return nil, err
	}

	xmlBytes, digest, err := r.composer.Compose(ctx, metadata)
	if err != nil {
		return nil, err
	}

	objs := make([]domain.DRObject, 0, len(bitstreams)+1)
	objs = append(objs, &domain.MetadataObject{
		IoRef:                       ioRef,
		OptionalRepresentationGroup: group,
		Filename:                    "CO_Metadata.xml",
		Digest:                      digest,
		XMLBytes:                    xmlBytes,
		DestinationPath:             pathplan.COMetadataPath(ioRef, group, ref),
		Identifier:                  coIdentifier.String(),
	})

	for _, bs := range bitstreams {
		bsID, err := identifierFromFilename(bs.Name)
		if err != nil {
			return nil, err
		}
		objs = append(objs, &domain.FileObject{
			IoRef:           ioRef,
			Filename:        bs.Name,
			Fixity:          bs.Fixity,
			URL:             bs.URL,
			DestinationPath: pathplan.BitstreamPath(ioRef, group, ref, bs.GenerationType, bs.GenerationVersion, bs.Name),
			Identifier:      bsID,
		})
	}

	return objs, nil
}

// resolveRepresentationGroup enumerates the parent IO's representations
// and finds the at-most-one group this CO belongs to.
func (r *Resolver) resolveRepresentationGroup(ctx context.Context, ioRef, coRef uuid.UUID) (*domain.RepresentationGroup, error) {
	urls, err := r.client.RepresentationURLsForIo(ctx, ioRef)
	if err != nil {
		return nil, err
	}

	var matches []domain.RepresentationGroup
	for _, url := range urls {
		repType, index, err := parseRepresentationURL(url)
		if err != nil {
			return nil, err
		}

		members, err := r.client.ContentObjectsFromRepresentation(ctx, ioRef, repType, index)
		if err != nil {
			return nil, err
		}

		for _, m := range members {
			if m == coRef {
				matches = append(matches, domain.RepresentationGroup{Type: repType, Index: index})
				break
			}
		}
	}

	if len(matches) > 1 {
		return nil, fmt.Errorf("%w: CO %s belongs to %d representation groups", domain.ErrInvariant, coRef, len(matches))
	}
	if len(matches) == 1 {
		return &matches[0], nil
	}
	return nil, nil
}

// parseRepresentationURL extracts (type, index) from the URL's trailing
// two path segments, e.g. ".../preservation/1".
func parseRepresentationURL(url string) (domain.RepresentationType, int, error) {
	trimmed := strings.TrimRight(url, "/")
	indexSegment := path.Base(trimmed)
	typeSegment := path.Base(path.Dir(trimmed))

	index, err := strconv.Atoi(indexSegment)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: representation URL %q has non-numeric index", domain.ErrInvariant, url)
	}

	switch strings.ToLower(typeSegment) {
	case "preservation":
		return domain.Preservation, index, nil
	case "access":
		return domain.Access, index, nil
	default:
		return 0, 0, fmt.Errorf("%w: representation URL %q has unknown type %q", domain.ErrInvariant, url, typeSegment)
	}
}

// coIdentifierFromBitstreams requires every bitstream name (minus
// extension) to parse as the same UUID; that UUID is the CO identifier.
func coIdentifierFromBitstreams(bitstreams []domain.BitstreamInfo) (uuid.UUID, error) {
	seen := map[uuid.UUID]struct{}{}
	for _, bs := range bitstreams {
		id, err := identifierFromFilename(bs.Name)
		if err != nil {
			return uuid.Nil, err
		}
		seen[id] = struct{}{}
	}
	if len(seen) != 1 {
		return uuid.Nil, fmt.Errorf("%w: bitstream names resolve to %d distinct identifiers", domain.ErrInvariant, len(seen))
	}
	for id := range seen {
		return id, nil
	}
	return uuid.Nil, nil
}

func identifierFromFilename(name string) (uuid.UUID, error) {
	stripped := strings.TrimSuffix(name, path.Ext(name))
	id, err := uuid.Parse(stripped)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bitstream name %q does not embed a UUID: %v", domain.ErrInvariant, name, err)
	}
	return id, nil
}
