// Package staging implements the Staging Transfer: it streams
// bitstream payloads and writes composed metadata bytes into a
// per-batch temporary directory, producing the (object, stagingPath,
// destinationPath) tuples the Local Store commits. Independent
// per-object transfers run in parallel via errgroup, bounded so one
// large batch cannot open unbounded upstream streams at once.
package staging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/dpreserve/drreplicator/common/entityclient"
	"github.com/dpreserve/drreplicator/internal/domain"
)

const maxParallelStages = 8

// Transfer owns one batch's staging directory.
type Transfer struct {
	client  entityclient.Client
	dir     string
	counter atomic.Int64
}

// New creates a staging directory under workDir for one batch. Call
// Close when the batch ends, whether it succeeded or failed.
func New(ctx context.Context, client entityclient.Client, workDir string) (*Transfer, error) {
	dir, err := os.MkdirTemp(workDir, "staging-*")
	if err != nil {
		return nil, fmt.Errorf("%w: create staging dir: %v", domain.ErrStorage, err)
	}
	return &Transfer{client: client, dir: dir}, nil
}

// Close removes the staging directory and everything under it.
func (t *Transfer) Close() error {
	return os.RemoveAll(t.dir)
}

// StageAll stages every candidate object in parallel (bounded),
// streaming bitstreams from the entity client and writing metadata
// objects' already-composed bytes. Any single failure aborts the whole
// batch: the first error cancels the remaining transfers and is
// returned.
func (t *Transfer) StageAll(ctx context.Context, objects []domain.DRObject) ([]domain.StagedWrite, error) {
	writes := make([]domain.StagedWrite, len(objects))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(maxParallelStages)

	for i, obj := range objects {
		i, obj := i, obj
		group.Go(func() error {
			w, err := t.stageOne(gctx, obj)
			if err != nil {
				return err
			}
			writes[i] = w
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return writes, nil
}

func (t *Transfer) stageOne(ctx context.Context, obj domain.DRObject) (domain.StagedWrite, error) {
	seq := t.counter.Add(1)
	stagingPath := filepath.Join(t.dir, strconv.FormatInt(seq, 10))

	switch v := obj.(type) {
	case *domain.FileObject:
		if err := t.stageFile(ctx, stagingPath, v); err != nil {
			return domain.StagedWrite{}, err
		}
	case *domain.MetadataObject:
		if err := os.WriteFile(stagingPath, v.XMLBytes, 0o644); err != nil {
			return domain.StagedWrite{}, fmt.Errorf("%w: write metadata %s: %v", domain.ErrStorage, v.DestinationPath, err)
		}
	default:
		return domain.StagedWrite{}, fmt.Errorf("%w: unknown DR object variant", domain.ErrInvariant)
	}

	return domain.StagedWrite{
		Object:          obj,
		StagingPath:     stagingPath,
		DestinationPath: obj.Destination(),
	}, nil
}

func (t *Transfer) stageFile(ctx context.Context, stagingPath string, f *domain.FileObject) error {
	out, err := os.Create(stagingPath)
	if err != nil {
		return fmt.Errorf("%w: create staging file for %s: %v", domain.ErrStorage, f.DestinationPath, err)
	}
	defer out.Close()

	if err := t.client.StreamBitstream(ctx, f.URL, out); err != nil {
		return err
	}
	return out.Close()
}
