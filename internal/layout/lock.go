package layout

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// RepoLock is the advisory, process-wide lock preventing two concurrent
// orchestrator invocations against the same repository (spec §5, "Shared-
// resource policy": "concurrent invocations of the orchestrator against
// the same repository are not supported and should be prevented by a
// repository-level lock file (advisory)").
type RepoLock struct {
	fl *flock.Flock
}

// NewRepoLock returns a lock guarding the repository rooted at l.Root.
func (l *Layout) NewRepoLock() *RepoLock {
	return &RepoLock{fl: flock.New(l.LockFile())}
}

// TryLock attempts to acquire the lock without blocking, retrying briefly
// to absorb a sibling process's lock/unlock race, and returns an error
// naming the lock file if it's still held.
func (rl *RepoLock) TryLock(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	locked, err := rl.fl.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquiring repository lock %s: %w", rl.fl.Path(), err)
	}
	if !locked {
		return fmt.Errorf("repository %s is locked by another invocation", rl.fl.Path())
	}
	return nil
}

// Unlock releases the lock.
func (rl *RepoLock) Unlock() error {
	return rl.fl.Unlock()
}
