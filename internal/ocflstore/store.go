// Package ocflstore is the Local Store (OCFL adapter): it binds to
// a filesystem OCFL repository laid out with HashedNTupleLayout,
// classifies candidate DR Objects against the HEAD version by SHA-256
// digest, and commits batches of staged writes as new object versions.
package ocflstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/dpreserve/drreplicator/common/cache"
	"github.com/dpreserve/drreplicator/common/logger"
	"github.com/dpreserve/drreplicator/internal/domain"
)

// Store is the filesystem-backed OCFL repository handle. It is an
// explicitly injected, process-wide singleton with a documented
// lifetime: open at startup via New, no ambient discovery.
type Store struct {
	repoRoot string
	workDir  string
	cache    cache.Cache
	log      *logger.Logger

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New binds to repoRoot/workDir. Both directories are created if
// absent.
func New(repoRoot, workDir string, inventoryCache cache.Cache, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(repoRoot, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create repo dir: %v", domain.ErrStorage, err)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create work dir: %v", domain.ErrStorage, err)
	}
	return &Store{
		repoRoot: repoRoot,
		workDir:  workDir,
		cache:    inventoryCache,
		log:      log,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) lockFor(ioRef string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[ioRef]
	if !ok {
		l = &sync.Mutex{}
		s.locks[ioRef] = l
	}
	return l
}

// Classify groups candidates by ioRef and splits them into missing
// and changed. Candidates not returned in either list are unchanged
// and require no further work.
func (s *Store) Classify(ctx context.Context, candidates []domain.DRObject) (missing, changed []domain.DRObject, err error) {
	byIORef := map[string][]domain.DRObject{}
	for _, c := range candidates {
		key := c.IORef().String()
		byIORef[key] = append(byIORef[key], c)
	}

	for ioRef, group := range byIORef {
		inv, loadErr := s.readHeadInventory(ioRef)
		if loadErr != nil {
			return nil, nil, loadErr
		}
		if inv == nil {
			missing = append(missing, group...)
			continue
		}

		state := inv.headState()
		for _, c := range group {
			digest, present := state[c.Destination()]
			switch {
			case !present:
				missing = append(missing, c)
			case digest != c.ExpectedDigest():
				changed = append(changed, c)
			}
		}
	}

	return missing, changed, nil
}

func (s *Store) readHeadInventory(ioRef string) (*inventory, error) {
	if s.cache != nil {
		if raw, found, err := s.cache.Get(context.Background(), ioRef); err == nil && found {
			inv, parseErr := unmarshalCached(raw)
			if parseErr == nil {
				return inv, nil
			}
		}
	}

	root := objectRoot(s.repoRoot, ioRef)
	inv, err := loadInventory(filepath.Join(root, inventoryFilename))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}

	if inv != nil && s.cache != nil {
		if raw, marshalErr := marshalForCache(inv); marshalErr == nil {
			_ = s.cache.Put(context.Background(), ioRef, raw)
		}
	}

	return inv, nil
}

// Commit writes staged missing/changed objects as one new version of
// the OCFL object ioRef, creating the object if it does not yet exist.
// The new version is assembled under a per-commit staging directory and
// only moved into place once complete, so a failure mid-commit never
// exposes a partial version.
func (s *Store) Commit(ctx context.Context, ioRef string, writes []domain.StagedWrite) error {
	if len(writes) == 0 {
		return nil
	}

	lock := s.lockFor(ioRef)
	lock.Lock()
	defer lock.Unlock()

	root := objectRoot(s.repoRoot, ioRef)
	existing, err := loadInventory(filepath.Join(root, inventoryFilename))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}

	isNew := existing == nil
	inv := existing
	if inv == nil {
		inv = newInventory(ioRef)
	}

	nextVersionNum := inv.headVersionNumber() + 1
	nextVersion := versionDirName(nextVersionNum)

	state := map[string][]string{}
	for digest, paths := range headVersionState(inv) {
		state[digest] = append([]string{}, paths...)
	}

	stageRoot, err := os.MkdirTemp(s.workDir, "commit-*")
	if err != nil {
		return fmt.Errorf("%w: create staging dir: %v", domain.ErrStorage, err)
	}
	defer os.RemoveAll(stageRoot)

	newManifestEntries := map[string]string{} // digest -> staged content path (relative to object root)

	for _, w := range writes {
		digest := w.Object.ExpectedDigest()
		logicalPath := w.DestinationPath

		removeLogicalPath(state, logicalPath)
		state[digest] = append(state[digest], logicalPath)

		if _, already := inv.Manifest[digest]; already {
			s.log.WithObjectID(logicalPath).Debug("content already present in manifest, reusing", "digest", digest)
			continue
		}
		if _, staging := newManifestEntries[digest]; staging {
			continue
		}

		contentRelPath := filepath.Join(nextVersion, "content", filepath.FromSlash(logicalPath))
		stagedAbsPath := filepath.Join(stageRoot, contentRelPath)
		if err := copyFile(w.StagingPath, stagedAbsPath); err != nil {
			return fmt.Errorf("%w: stage content for %s: %v", domain.ErrStorage, logicalPath, err)
		}
		newManifestEntries[digest] = filepath.ToSlash(contentRelPath)
		s.log.WithObjectID(logicalPath).Debug("staged new content into version", "digest", digest, "version", nextVersion)
	}

	inv.Versions[nextVersion] = &inventoryVersion{
		Created: nowRFC3339(),
		State:   state,
	}
	inv.Head = nextVersion

	for digest, relPath := range newManifestEntries {
		inv.Manifest[digest] = append(inv.Manifest[digest], relPath)
	}

	if err := writeInventory(stageRoot, inv); err != nil {
		return fmt.Errorf("%w: write root inventory: %v", domain.ErrStorage, err)
	}
	if err := writeInventory(filepath.Join(stageRoot, nextVersion), inv); err != nil {
		return fmt.Errorf("%w: write version inventory: %v", domain.ErrStorage, err)
	}

	if err := s.sealVersion(root, stageRoot, nextVersion, isNew); err != nil {
		return err
	}

	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, ioRef)
	}

	return nil
}

// sealVersion moves the assembled content and inventories from the
// staging directory into the live object root. Existing files at root
// (earlier versions, NAMASTE marker) are left untouched; only the new
// version directory and the two inventory.json copies are added, so a
// failure partway through never removes a previously sealed version.
func (s *Store) sealVersion(root, stageRoot, versionDir string, isNew bool) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("%w: create object root: %v", domain.ErrStorage, err)
	}
	if isNew {
		if err := writeNamaste(root); err != nil {
			return fmt.Errorf("%w: write NAMASTE marker: %v", domain.ErrStorage, err)
		}
	}

	if err := os.Rename(filepath.Join(stageRoot, versionDir), filepath.Join(root, versionDir)); err != nil {
		return fmt.Errorf("%w: seal version directory: %v", domain.ErrStorage, err)
	}

	tmpInventory := filepath.Join(root, inventoryFilename+".tmp")
	if err := copyFile(filepath.Join(stageRoot, inventoryFilename), tmpInventory); err != nil {
		return fmt.Errorf("%w: stage root inventory: %v", domain.ErrStorage, err)
	}
	if err := os.Rename(tmpInventory, filepath.Join(root, inventoryFilename)); err != nil {
		return fmt.Errorf("%w: seal root inventory: %v", domain.ErrStorage, err)
	}

	return nil
}

func headVersionState(inv *inventory) map[string][]string {
	if inv.Head == "" {
		return nil
	}
	v, ok := inv.Versions[inv.Head]
	if !ok {
		return nil
	}
	return v.State
}

func removeLogicalPath(state map[string][]string, logicalPath string) {
	for digest, paths := range state {
		filtered := paths[:0]
		for _, p := range paths {
			if p != logicalPath {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) == 0 {
			delete(state, digest)
		} else {
			state[digest] = filtered
		}
	}
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
