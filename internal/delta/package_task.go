package delta

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/andrel/aaus/internal/apkid"
	"github.com/andrel/aaus/internal/store"
)

// runPackageTask is the per-package unit of work an actor request fans out
// to: it reads the current release history, picks up to MaxBases prior
// versions as delta bases, generates each in its own job under the shared
// semaphore, then atomically replaces the package's delta record set and
// sweeps delta files the new target made stale (spec §4.G).
func (e *Engine) runPackageTask(ctx context.Context, pkg apkid.PackageName) {
	defer e.wg.Done()

	releases, err := e.db.AllReleases(ctx, pkg)
	if err != nil {
		e.recordFailure(pkg, fmt.Errorf("reading release history: %w", err))
		return
	}
	if len(releases) < 2 {
		return
	}

	target := releases[0]
	numBases := len(releases) - 1
	if numBases > MaxBases {
		numBases = MaxBases
	}
	bases := releases[1 : 1+numBases]

	var (
		mu      sync.Mutex
		records []store.DeltaRecord
		g       errgroup.Group
	)
	for _, base := range bases {
		base := base
		// Each job reports its own outcome on the progress channel and
		// never returns an error to the group: a failed base must not
		// cancel its siblings (spec §4.G treats each job independently).
		g.Go(func() error {
			rec, err := e.generateOne(ctx, pkg, base, target)
			if err != nil {
				e.progress <- progressEvent{pkg: pkg, warning: true, line: fmt.Sprintf("%s: base %s -> %s: %v", pkg, base.VersionCode, target.VersionCode, err)}
				return nil
			}
			mu.Lock()
			records = append(records, *rec)
			mu.Unlock()
			e.progress <- progressEvent{pkg: pkg, line: fmt.Sprintf("%s: %s -> %s", pkg, base.VersionCode, target.VersionCode)}
			return nil
		})
	}
	g.Wait()

	if len(records) == 0 {
		return
	}

	err = e.db.Transaction(ctx, func(tx *store.Tx) error {
		if err := store.DeleteDeltasForApp(tx, pkg); err != nil {
			return err
		}
		return store.InsertDeltaInfos(tx, records)
	})
	if err != nil {
		e.recordFailure(pkg, fmt.Errorf("committing delta records: %w", err))
		return
	}

	removeStaleDeltaFiles(e.lay, pkg, target.VersionCode)
}
