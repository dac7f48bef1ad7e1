// Package coordinator implements the Batch Coordinator: the
// top-level orchestration of dedupe, resolve, classify, stage, commit,
// notify, and acknowledge for one batch of queue messages.
package coordinator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dpreserve/drreplicator/common/clients"
	"github.com/dpreserve/drreplicator/common/entityclient"
	"github.com/dpreserve/drreplicator/common/logger"
	"github.com/dpreserve/drreplicator/common/metrics"
	"github.com/dpreserve/drreplicator/common/queue"
	"github.com/dpreserve/drreplicator/internal/domain"
	"github.com/dpreserve/drreplicator/internal/notifier"
	"github.com/dpreserve/drreplicator/internal/ocflstore"
	"github.com/dpreserve/drreplicator/internal/resolver"
	"github.com/dpreserve/drreplicator/internal/staging"
)

// Coordinator processes batches drained from a queue.
type Coordinator struct {
	queue        queue.Queue
	queueURL     string
	batchSize    int
	resolver     *resolver.Resolver
	entityClient entityclient.Client
	store        *ocflstore.Store
	workDir      string
	notifier     *notifier.Notifier
	log          *logger.Logger
}

// Config bundles the Coordinator's collaborators.
type Config struct {
	Queue        queue.Queue
	QueueURL     string
	BatchSize    int
	Resolver     *resolver.Resolver
	EntityClient entityclient.Client
	Store        *ocflstore.Store
	WorkDir      string
	Notifier     *notifier.Notifier
	Log          *logger.Logger
}

// New builds a Coordinator.
func New(cfg Config) *Coordinator {
	return &Coordinator{
		queue:        cfg.Queue,
		queueURL:     cfg.QueueURL,
		batchSize:    cfg.BatchSize,
		resolver:     cfg.Resolver,
		entityClient: cfg.EntityClient,
		store:        cfg.Store,
		workDir:      cfg.WorkDir,
		notifier:     cfg.Notifier,
		log:          cfg.Log,
	}
}

// RunOnce drains and processes a single batch. It returns the number of
// carriers received so callers can decide whether to poll again
// immediately or back off.
func (c *Coordinator) RunOnce(ctx context.Context) (int, error) {
	carriers, err := c.queue.Receive(ctx, c.queueURL, c.batchSize)
	if err != nil {
		return 0, err
	}
	if len(carriers) == 0 {
		return 0, nil
	}

	if err := c.process(ctx, carriers); err != nil {
		return len(carriers), err
	}
	return len(carriers), nil
}

// process runs the batch algorithm end to end: drop undecodable
// carriers, dedupe, resolve, classify, stage, commit, notify,
// acknowledge. Any failure before the acknowledge step returns
// without deleting any carrier, so the queue redelivers the whole batch.
func (c *Coordinator) process(ctx context.Context, carriers []domain.MessageCarrier) error {
	counters := &metrics.BatchCounters{}

	ctx = clients.WithBatchID(ctx, uuid.NewString())
	log := c.log.WithContext(ctx)

	// Step 1: drop carriers whose message failed to decode.
	decoded := make([]domain.MessageCarrier, 0, len(carriers))
	for _, carrier := range carriers {
		if carrier.Decoded == nil {
			log.Warn("dropping carrier with undecodable message", "receipt_handle", carrier.ReceiptHandle, "error", domain.ErrDecode)
			continue
		}
		decoded = append(decoded, carrier)
	}
	if len(decoded) == 0 {
		return nil
	}

	// Step 2: dedupe by canonical text; remember every carrier sharing a
	// canonical message so all duplicates are deleted together in step 9.
	uniqueMessages := make([]domain.Message, 0, len(decoded))
	carriersByText := map[string][]domain.MessageCarrier{}
	seenText := map[string]bool{}
	for _, carrier := range decoded {
		text := carrier.Decoded.CanonicalText()
		carriersByText[text] = append(carriersByText[text], carrier)
		if !seenText[text] {
			seenText[text] = true
			uniqueMessages = append(uniqueMessages, *carrier.Decoded)
		}
	}

	// Step 3/4: resolve each unique message to DR Objects, in parallel,
	// and flatten into one candidate set.
	candidates, err := c.resolver.ResolveAll(ctx, uniqueMessages)
	if err != nil {
		return err
	}
	counters.AddResolved(int64(len(candidates)))

	if err := checkDestinationUniqueness(candidates); err != nil {
		return err
	}

	// Step 5: classify against the local store.
	missing, changed, err := c.store.Classify(ctx, candidates)
	if err != nil {
		return err
	}
	counters.AddMissing(int64(len(missing)))
	counters.AddChanged(int64(len(changed)))
	counters.AddUnchanged(int64(len(candidates) - len(missing) - len(changed)))

	if len(missing) == 0 && len(changed) == 0 {
		log.Info("batch converged with no changes", "batch_counters", counters.Snapshot())
		return c.acknowledge(ctx, carriersByText)
	}

	// Step 6: stage missing and changed objects.
	transfer, err := staging.New(ctx, c.entityClient, c.workDir)
	if err != nil {
		return err
	}
	defer transfer.Close()

	stagedMissing, err := transfer.StageAll(ctx, missing)
	if err != nil {
		return err
	}
	stagedChanged, err := transfer.StageAll(ctx, changed)
	if err != nil {
		return err
	}
	counters.AddStaged(int64(len(stagedMissing) + len(stagedChanged)))

	// Step 7: commit. One version per affected OCFL object per batch;
	// missing and changed writes for the same object are folded into the
	// same version since they necessarily happen together.
	if err := c.commitAll(ctx, stagedMissing, stagedChanged); err != nil {
		return err
	}
	counters.AddCommitted(int64(len(stagedMissing) + len(stagedChanged)))

	// Step 8: publish one event per staged object.
	if err := c.notifier.NotifyCommitted(ctx, stagedMissing, stagedChanged); err != nil {
		return err
	}
	counters.AddPublished(int64(len(stagedMissing) + len(stagedChanged)))

	log.Info("batch committed", "batch_counters", counters.Snapshot())

	// Step 9: acknowledge every original carrier, including duplicates.
	return c.acknowledge(ctx, carriersByText)
}

func (c *Coordinator) commitAll(ctx context.Context, missing, changed []domain.StagedWrite) error {
	byIORef := map[string][]domain.StagedWrite{}
	order := []string{}
	for _, w := range append(append([]domain.StagedWrite{}, missing...), changed...) {
		key := w.Object.IORef().String()
		if _, seen := byIORef[key]; !seen {
			order = append(order, key)
		}
		byIORef[key] = append(byIORef[key], w)
	}

	for _, ioRef := range order {
		if err := c.store.Commit(ctx, ioRef, byIORef[ioRef]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) acknowledge(ctx context.Context, carriersByText map[string][]domain.MessageCarrier) error {
	for _, carriers := range carriersByText {
		for _, carrier := range carriers {
			if err := c.queue.Delete(ctx, carrier.QueueURL, carrier.ReceiptHandle); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkDestinationUniqueness enforces "within one batch, DR Objects are
// unique by destinationPath; two differing payloads at the same
// destination are a fatal error".
func checkDestinationUniqueness(candidates []domain.DRObject) error {
	seen := map[string]domain.DRObject{}
	for _, c := range candidates {
		dest := c.Destination()
		if prior, ok := seen[dest]; ok {
			if prior.ExpectedDigest() != c.ExpectedDigest() {
				return fmt.Errorf("%w: conflicting payloads at destination %s", domain.ErrInvariant, dest)
			}
			continue
		}
		seen[dest] = c
	}
	return nil
}
