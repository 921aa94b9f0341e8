package delta

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/andrel/aaus/internal/apkid"
	"github.com/andrel/aaus/internal/deltacodec"
	"github.com/andrel/aaus/internal/store"
)

// generateOne produces one base-to-target delta, admitting itself against
// the shared temp-disk safety margin before it runs and deferring (rather
// than failing or deadlocking) when the margin is too tight, up to
// MaxDeferrals times (spec §4.G, §5).
func (e *Engine) generateOne(ctx context.Context, pkg apkid.PackageName, base, target *store.Release) (*store.DeltaRecord, error) {
	oldPath := e.lay.ApkFile(pkg, base.VersionCode)
	newPath := e.lay.ApkFile(pkg, target.VersionCode)

	oldInfo, err := os.Stat(oldPath)
	if err != nil {
		return nil, fmt.Errorf("stat base apk: %w", err)
	}
	newInfo, err := os.Stat(newPath)
	if err != nil {
		return nil, fmt.Errorf("stat target apk: %w", err)
	}
	estimate := int64(float64(deltacodec.EstimateTempSpace(oldInfo.Size(), newInfo.Size())) * 1.05)

	forced, err := e.admit(ctx, estimate)
	if err != nil {
		return nil, err
	}
	defer e.liveEstimate.Add(-estimate)
	defer e.sem.Release(1)
	if forced {
		e.progress <- progressEvent{pkg: pkg, warning: true, line: fmt.Sprintf(
			"%s: base %s -> %s: proceeding after %d deferrals despite tight temp space", pkg, base.VersionCode, target.VersionCode, MaxDeferrals)}
	}

	tmp, err := os.CreateTemp(e.tmpDir, "delta-*.gz")
	if err != nil {
		return nil, fmt.Errorf("creating temp delta file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := deltacodec.Generate(oldPath, newPath, tmpPath, true); err != nil {
		return nil, fmt.Errorf("generating delta: %w", err)
	}

	sha, err := hashFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("hashing delta: %w", err)
	}

	dest := e.lay.DeltaFile(pkg, base.VersionCode, target.VersionCode)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("creating package directory: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return nil, fmt.Errorf("installing delta: %w", err)
	}

	return &store.DeltaRecord{
		Package: pkg,
		Base:    base.VersionCode,
		Target:  target.VersionCode,
		SHA256:  sha,
	}, nil
}

// admit blocks until a concurrency slot is free and the estimated temp
// space the job needs fits both under freeSpaceAtStart-SafetyMargin
// alongside every other job's live estimate, and under the disk's
// current live free space. When space is tight it releases the slot,
// sleeps DeferDelay, and retries on a freshly acquired slot, up to
// MaxDeferrals times — after which the delta is attempted regardless
// (spec §4.G: "Once D_max is reached, warn and proceed regardless").
func (e *Engine) admit(ctx context.Context, estimate int64) (forced bool, err error) {
	budget := e.freeSpaceAtStart - SafetyMargin

	for attempt := 0; ; attempt++ {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return false, fmt.Errorf("acquiring concurrency slot: %w", err)
		}

		inUse := e.liveEstimate.Load()
		live, liveErr := freeSpace(e.tmpDir)
		tight := inUse+estimate > budget || (liveErr == nil && live < SafetyMargin)

		if !tight || attempt >= MaxDeferrals {
			e.liveEstimate.Add(estimate)
			return tight, nil
		}

		e.sem.Release(1)
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(DeferDelay):
		}
	}
}

func hashFile(path string) (apkid.Sha256, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return apkid.Sha256FromRaw(h.Sum(nil))
}
