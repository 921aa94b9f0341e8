// Package delta is the Delta Generation Engine (spec §4.G): a concurrent,
// space-aware, bounded fan-out delta producer with per-package progress
// reporting and failure isolation. A single actor accepts per-package work
// requests on a channel and a late-latched "start printing" signal, the way
// the source system's actor-on-an-unbounded-channel pattern is modeled
// (spec §9).
package delta

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/andrel/aaus/internal/apkid"
	"github.com/andrel/aaus/internal/layout"
	"github.com/andrel/aaus/internal/store"
)

// Tunables fixed by the spec (§4.G, §5).
const (
	MaxBases       = 5               // K
	MaxConcurrency = 5               // P_gen
	SafetyMargin   = 200 * 1024 * 1024 // SAFETY
	MaxDeferrals   = 20               // D_max
	DeferDelay     = 30 * time.Second
)

type requestKind int

const (
	reqForPackage requestKind = iota
	reqStartPrinting
)

type request struct {
	kind requestKind
	pkg  apkid.PackageName
}

// FailedPackage records a package whose delta generation failed outright:
// its release history could not be read or its new delta records could not
// be committed. A base whose codec run fails is reported as a warning on the
// progress stream and left out of the record set; it does not put the
// package on this list, and neither does a job that ran after exhausting
// its deferral budget.
type FailedPackage struct {
	Package apkid.PackageName
	Err     error
}

// Engine owns the actor loop, the global concurrency and space-accounting
// state, and the failure list. Construct with New and drive it with
// ForPackage/StartPrinting/Wait.
type Engine struct {
	db     *store.DB
	lay    *layout.Layout
	tmpDir string

	sem              *semaphore.Weighted
	freeSpaceAtStart int64
	liveEstimate     atomic.Int64

	requests chan request
	progress chan progressEvent

	wg        sync.WaitGroup
	loopDone  chan struct{}
	failedMu  sync.Mutex
	failed    []FailedPackage
}

// New constructs an Engine. tmpDir is where the temp-disk safety margin is
// measured (spec §5: "The temp directory's free-space counter is the sole
// shared mutable quantity across delta workers").
func New(db *store.DB, lay *layout.Layout, tmpDir string) (*Engine, error) {
	free, err := freeSpace(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("measuring free space in %s: %w", tmpDir, err)
	}
	e := &Engine{
		db:               db,
		lay:              lay,
		tmpDir:           tmpDir,
		sem:              semaphore.NewWeighted(MaxConcurrency),
		freeSpaceAtStart: free,
		requests:         make(chan request, 1024),
		progress:         make(chan progressEvent, 1024),
		loopDone:         make(chan struct{}),
	}
	go e.runLoop(context.Background())
	go e.runPrinter()
	return e, nil
}

// ForPackage signals the engine to generate deltas for pkg once the
// current state of its directory is read.
func (e *Engine) ForPackage(pkg apkid.PackageName) {
	e.wg.Add(1)
	e.requests <- request{kind: reqForPackage, pkg: pkg}
}

// StartPrinting latches the progress printer; send after every ForPackage
// call for this invocation has been made.
func (e *Engine) StartPrinting() {
	e.requests <- request{kind: reqStartPrinting}
}

// Wait blocks until every submitted package task has finished, then shuts
// down the actor and printer loops, and returns the list of packages whose
// delta generation failed outright.
func (e *Engine) Wait() []FailedPackage {
	e.wg.Wait()
	close(e.requests)
	<-e.loopDone
	close(e.progress)

	e.failedMu.Lock()
	defer e.failedMu.Unlock()
	return append([]FailedPackage(nil), e.failed...)
}

func (e *Engine) runLoop(ctx context.Context) {
	defer close(e.loopDone)
	for req := range e.requests {
		switch req.kind {
		case reqForPackage:
			go e.runPackageTask(ctx, req.pkg)
		case reqStartPrinting:
			e.progress <- progressEvent{startPrinting: true}
		}
	}
}

func (e *Engine) recordFailure(pkg apkid.PackageName, err error) {
	e.failedMu.Lock()
	e.failed = append(e.failed, FailedPackage{Package: pkg, Err: err})
	e.failedMu.Unlock()
	e.progress <- progressEvent{pkg: pkg, warning: true, line: fmt.Sprintf("delta generation failed for %s: %v", pkg, err)}
}

func freeSpace(dir string) (int64, error) {
	var stat diskStat
	if err := statfs(dir, &stat); err != nil {
		return 0, err
	}
	return stat.AvailableBytes(), nil
}

// removeStaleDeltaFiles deletes every delta file in pkg's directory whose
// parsed target isn't current, after the new DeltaRecord set for pkg has
// committed (spec §4.G step 4; ordering guarantee in §5).
func removeStaleDeltaFiles(lay *layout.Layout, pkg apkid.PackageName, current apkid.VersionCode) {
	files, err := lay.DeltaFilesInPackageDir(pkg)
	if err != nil {
		return
	}
	for _, f := range files {
		if f.Target != current {
			os.Remove(f.Path)
		}
	}
}

// sortDescending sorts version codes highest first.
func sortDescending(versions []apkid.VersionCode) {
	sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })
}
