package coordinator

import (
	"context"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpreserve/drreplicator/common/cache"
	"github.com/dpreserve/drreplicator/common/entityclient"
	"github.com/dpreserve/drreplicator/common/logger"
	"github.com/dpreserve/drreplicator/common/validation"
	"github.com/dpreserve/drreplicator/internal/domain"
	"github.com/dpreserve/drreplicator/internal/notifier"
	"github.com/dpreserve/drreplicator/internal/ocflstore"
	"github.com/dpreserve/drreplicator/internal/resolver"
	"github.com/dpreserve/drreplicator/internal/xip"
)

// fakeQueue is an in-memory Queue that serves a fixed batch of
// carriers once, then reports empty, recording every Delete call so
// tests can assert acknowledgement happened (or didn't).
type fakeQueue struct {
	carriers []domain.MessageCarrier
	served   bool
	deleted  []string
}

func (q *fakeQueue) Receive(ctx context.Context, queueURL string, maxMessages int) ([]domain.MessageCarrier, error) {
	if q.served {
		return nil, nil
	}
	q.served = true
	return q.carriers, nil
}

func (q *fakeQueue) Delete(ctx context.Context, queueURL, receiptHandle string) error {
	q.deleted = append(q.deleted, receiptHandle)
	return nil
}

// fakePublisher records every ChangeEvent batch handed to it.
type fakePublisher struct {
	published [][]domain.ChangeEvent
}

func (p *fakePublisher) Publish(ctx context.Context, topic string, events []domain.ChangeEvent) error {
	p.published = append(p.published, events)
	return nil
}

// fakeEntityClient serves a single fixed IO whose SourceID can be
// mutated between calls to simulate an upstream metadata change.
type fakeEntityClient struct {
	sourceID string
	calls    int
}

func (c *fakeEntityClient) EntityByTypeAndRef(ctx context.Context, kind domain.EntityKind, ref uuid.UUID, parentHint *uuid.UUID) (domain.Entity, error) {
	return domain.Entity{Ref: ref, Kind: kind}, nil
}

func (c *fakeEntityClient) BitstreamInfo(ctx context.Context, coRef uuid.UUID) ([]domain.BitstreamInfo, error) {
	return nil, nil
}

func (c *fakeEntityClient) MetadataForEntity(ctx context.Context, entity domain.Entity) (domain.EntityMetadata, error) {
	c.calls++
	return domain.EntityMetadata{
		IsIO: true,
		IO: &domain.IoMetadata{
			EntityNode: domain.RawElement("<InformationObject/>"),
			Common: domain.CommonFragments{
				Identifiers: []domain.IdentifierNode{
					{
						Identifier: domain.Identifier{Type: "SourceID", Value: c.sourceID},
						Raw:        domain.RawElement("<Identifier>" + c.sourceID + "</Identifier>"),
					},
				},
			},
		},
	}, nil
}

func (c *fakeEntityClient) RepresentationURLsForIo(ctx context.Context, ioRef uuid.UUID) ([]string, error) {
	return nil, nil
}

func (c *fakeEntityClient) ContentObjectsFromRepresentation(ctx context.Context, ioRef uuid.UUID, repType domain.RepresentationType, index int) ([]uuid.UUID, error) {
	return nil, nil
}

func (c *fakeEntityClient) StreamBitstream(ctx context.Context, url string, sink io.Writer) error {
	_, err := sink.Write([]byte("content"))
	return err
}

func newTestCoordinator(t *testing.T, client *fakeEntityClient, q *fakeQueue, pub *fakePublisher) *Coordinator {
	t.Helper()
	return newTestCoordinatorWithClient(t, client, q, pub)
}

func ioCarrier(ioRef uuid.UUID, receiptHandle string) domain.MessageCarrier {
	msg := domain.Message{Kind: domain.InformationObjectMessageKind, Ref: ioRef}
	return domain.MessageCarrier{ReceiptHandle: receiptHandle, QueueURL: "queue-1", Decoded: &msg}
}

// TestFreshIO_CreatesObjectPublishesAndAcks: a fresh IO is committed
// as a new OCFL object, one Created event is published, and the
// carrier is acknowledged.
func TestFreshIO_CreatesObjectPublishesAndAcks(t *testing.T) {
	ioRef := uuid.New()
	client := &fakeEntityClient{sourceID: "SRC-1"}
	q := &fakeQueue{carriers: []domain.MessageCarrier{ioCarrier(ioRef, "rh-1")}}
	pub := &fakePublisher{}
	c := newTestCoordinator(t, client, q, pub)

	n, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, pub.published, 1)
	events := pub.published[0]
	require.Len(t, events, 1)
	assert.Equal(t, domain.Created, events[0].Status)
	assert.Equal(t, domain.MetadataObjectType, events[0].ObjectType)
	assert.Equal(t, "SRC-1", events[0].Identifier)
	assert.Equal(t, "CO", events[0].EntityType)

	assert.Equal(t, []string{"rh-1"}, q.deleted)
}

// TestReplay_IsIdempotentNoopSecondRun: resubmitting the same
// unchanged message classifies everything as unchanged, so the
// second run commits and publishes nothing, yet still acknowledges.
func TestReplay_IsIdempotentNoopSecondRun(t *testing.T) {
	ioRef := uuid.New()
	client := &fakeEntityClient{sourceID: "SRC-1"}
	pub := &fakePublisher{}

	q1 := &fakeQueue{carriers: []domain.MessageCarrier{ioCarrier(ioRef, "rh-1")}}
	c1 := newTestCoordinator(t, client, q1, pub)
	_, err := c1.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, pub.published, 1)

	// Re-run against the same repo root/work dir with a fresh coordinator,
	// as a redelivered batch would see.
	q2 := &fakeQueue{carriers: []domain.MessageCarrier{ioCarrier(ioRef, "rh-2")}}
	c2 := newTestCoordinator(t, client, q2, pub)
	c2.store = c1.store // same OCFL repository, simulating redelivery against converged state

	_, err = c2.RunOnce(context.Background())
	require.NoError(t, err)

	// No new event batch is published for the converged replay.
	assert.Len(t, pub.published, 1)
	// The redelivered carrier is still acknowledged so it leaves the queue.
	assert.Equal(t, []string{"rh-2"}, q2.deleted)
}

// TestMetadataChange_PublishesUpdatedEvent: a changed upstream
// identifier produces a new OCFL version and an Updated event rather
// than a Created one.
func TestMetadataChange_PublishesUpdatedEvent(t *testing.T) {
	ioRef := uuid.New()
	client := &fakeEntityClient{sourceID: "SRC-1"}
	pub := &fakePublisher{}

	q1 := &fakeQueue{carriers: []domain.MessageCarrier{ioCarrier(ioRef, "rh-1")}}
	c1 := newTestCoordinator(t, client, q1, pub)
	_, err := c1.RunOnce(context.Background())
	require.NoError(t, err)

	client.sourceID = "SRC-1-updated"
	q2 := &fakeQueue{carriers: []domain.MessageCarrier{ioCarrier(ioRef, "rh-2")}}
	c2 := newTestCoordinator(t, client, q2, pub)
	c2.store = c1.store

	_, err = c2.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, pub.published, 2)
	updated := pub.published[1]
	require.Len(t, updated, 1)
	assert.Equal(t, domain.Updated, updated[0].Status)
	assert.Equal(t, "SRC-1-updated", updated[0].Identifier)
}

// coFakeClient serves one Content Object with a single bitstream, its
// parent IO, and a configurable representation layout.
type coFakeClient struct {
	ioRef      uuid.UUID
	coRef      uuid.UUID
	bitstream  domain.BitstreamInfo
	repURLs    []string
	repMembers map[string][]uuid.UUID // "{type}/{index}" -> CO refs
}

func (c *coFakeClient) EntityByTypeAndRef(ctx context.Context, kind domain.EntityKind, ref uuid.UUID, parentHint *uuid.UUID) (domain.Entity, error) {
	if ref == c.coRef {
		return domain.Entity{Ref: ref, Kind: domain.ContentObject, Parent: &c.ioRef}, nil
	}
	return domain.Entity{Ref: ref, Kind: kind}, nil
}

func (c *coFakeClient) BitstreamInfo(ctx context.Context, coRef uuid.UUID) ([]domain.BitstreamInfo, error) {
	return []domain.BitstreamInfo{c.bitstream}, nil
}

func (c *coFakeClient) MetadataForEntity(ctx context.Context, entity domain.Entity) (domain.EntityMetadata, error) {
	return domain.EntityMetadata{
		IsIO: false,
		CO: &domain.CoMetadata{
			EntityNode:  domain.RawElement("<ContentObject/>"),
			Generations: []domain.RawElement{domain.RawElement("<Generation>1</Generation>")},
			Bitstreams:  []domain.RawElement{domain.RawElement("<Bitstream>" + c.bitstream.Name + "</Bitstream>")},
		},
	}, nil
}

func (c *coFakeClient) RepresentationURLsForIo(ctx context.Context, ioRef uuid.UUID) ([]string, error) {
	return c.repURLs, nil
}

func (c *coFakeClient) ContentObjectsFromRepresentation(ctx context.Context, ioRef uuid.UUID, repType domain.RepresentationType, index int) ([]uuid.UUID, error) {
	return c.repMembers[repType.String()+"/"+strconv.Itoa(index)], nil
}

func (c *coFakeClient) StreamBitstream(ctx context.Context, url string, sink io.Writer) error {
	_, err := sink.Write([]byte("tif bytes"))
	return err
}

func coCarrier(coRef uuid.UUID, receiptHandle string) domain.MessageCarrier {
	msg := domain.Message{Kind: domain.ContentObjectMessageKind, Ref: coRef}
	return domain.MessageCarrier{ReceiptHandle: receiptHandle, QueueURL: "queue-1", Decoded: &msg}
}

func newTestCoordinatorWithClient(t *testing.T, client entityclient.Client, q *fakeQueue, pub *fakePublisher) *Coordinator {
	t.Helper()
	log := logger.New("error", "console")
	store, err := ocflstore.New(t.TempDir(), t.TempDir(), cache.NewInventoryCache(time.Minute, log), log)
	require.NoError(t, err)

	composer := xip.New(validation.NoopValidator{})
	return New(Config{
		Queue:        q,
		QueueURL:     "queue-1",
		BatchSize:    10,
		Resolver:     resolver.New(client, composer),
		EntityClient: client,
		Store:        store,
		WorkDir:      t.TempDir(),
		Notifier:     notifier.New(pub, "topic-1"),
		Log:          log,
	})
}

// TestFreshCO_CommitsMetadataAndBitstream: a CO in preservation
// representation 1 produces one metadata object and one bitstream
// object inside the parent IO's OCFL object, two Created
// events, and an acknowledgement. A replay then converges to a no-op.
func TestFreshCO_CommitsMetadataAndBitstream(t *testing.T) {
	ioRef := uuid.New()
	coRef := uuid.New()
	bsID := uuid.New()

	client := &coFakeClient{
		ioRef: ioRef,
		coRef: coRef,
		bitstream: domain.BitstreamInfo{
			Name:              bsID.String() + ".tif",
			Fixity:            "d34db33f",
			URL:               "http://upstream/bs/1",
			GenerationType:    domain.Original,
			GenerationVersion: 1,
			ParentRef:         ioRef,
		},
		repURLs: []string{"http://upstream/io/representations/preservation/1"},
		repMembers: map[string][]uuid.UUID{
			"Preservation/1": {coRef},
		},
	}

	q := &fakeQueue{carriers: []domain.MessageCarrier{coCarrier(coRef, "rh-1")}}
	pub := &fakePublisher{}
	c := newTestCoordinatorWithClient(t, client, q, pub)

	_, err := c.RunOnce(context.Background())
	require.NoError(t, err)

	require.Len(t, pub.published, 1)
	events := pub.published[0]
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, domain.Created, ev.Status)
		assert.Equal(t, ioRef, ev.IoRef)
		assert.Equal(t, bsID.String(), ev.Identifier)
	}
	types := []domain.ObjectType{events[0].ObjectType, events[1].ObjectType}
	assert.ElementsMatch(t, []domain.ObjectType{domain.MetadataObjectType, domain.BitstreamObject}, types)
	assert.Equal(t, []string{"rh-1"}, q.deleted)

	// Replay against the same repository converges to a no-op.
	q2 := &fakeQueue{carriers: []domain.MessageCarrier{coCarrier(coRef, "rh-2")}}
	c2 := newTestCoordinatorWithClient(t, client, q2, pub)
	c2.store = c.store

	_, err = c2.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, pub.published, 1)
	assert.Equal(t, []string{"rh-2"}, q2.deleted)
}

// TestConflictingRepresentations_AbortsWithoutAck:
// a CO claimed by both Preservation_1 and Access_2 fails the batch
// with an invariant error before any commit, publish, or ack.
func TestConflictingRepresentations_AbortsWithoutAck(t *testing.T) {
	ioRef := uuid.New()
	coRef := uuid.New()
	bsID := uuid.New()

	client := &coFakeClient{
		ioRef: ioRef,
		coRef: coRef,
		bitstream: domain.BitstreamInfo{
			Name:              bsID.String() + ".tif",
			Fixity:            "d34db33f",
			URL:               "http://upstream/bs/1",
			GenerationType:    domain.Original,
			GenerationVersion: 1,
			ParentRef:         ioRef,
		},
		repURLs: []string{
			"http://upstream/io/representations/preservation/1",
			"http://upstream/io/representations/access/2",
		},
		repMembers: map[string][]uuid.UUID{
			"Preservation/1": {coRef},
			"Access/2":       {coRef},
		},
	}

	q := &fakeQueue{carriers: []domain.MessageCarrier{coCarrier(coRef, "rh-1")}}
	pub := &fakePublisher{}
	c := newTestCoordinatorWithClient(t, client, q, pub)

	_, err := c.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvariant)

	assert.Empty(t, pub.published)
	assert.Empty(t, q.deleted)
}

// TestDuplicatedMessages_ResolveOnceCommitOnceAckAll:
// the same message arriving three times in one batch is deduplicated
// before resolution, produces one commit and one event (an IO message
// yields a single metadata object), and every duplicate carrier is
// still acknowledged.
func TestDuplicatedMessages_ResolveOnceCommitOnceAckAll(t *testing.T) {
	ioRef := uuid.New()
	client := &fakeEntityClient{sourceID: "SRC-1"}
	q := &fakeQueue{carriers: []domain.MessageCarrier{
		ioCarrier(ioRef, "rh-1"),
		ioCarrier(ioRef, "rh-2"),
		ioCarrier(ioRef, "rh-3"),
	}}
	pub := &fakePublisher{}
	c := newTestCoordinator(t, client, q, pub)

	_, err := c.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, client.calls)
	require.Len(t, pub.published, 1)
	assert.Len(t, pub.published[0], 1)

	assert.ElementsMatch(t, []string{"rh-1", "rh-2", "rh-3"}, q.deleted)
}
