package delta

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/andrel/aaus/internal/apkid"
	"github.com/andrel/aaus/internal/apkinfo"
	"github.com/andrel/aaus/internal/layout"
	"github.com/andrel/aaus/internal/store"
)

func mustPkg(t *testing.T, s string) apkid.PackageName {
	t.Helper()
	p, err := apkid.NewPackageName(s)
	if err != nil {
		t.Fatalf("NewPackageName(%q): %v", s, err)
	}
	return p
}

// seedReleases writes three fake APK files under lay and inserts matching
// release rows, so the engine has real bytes to diff.
func seedReleases(t *testing.T, db *store.DB, lay *layout.Layout, pkg apkid.PackageName) {
	t.Helper()
	ctx := context.Background()
	if _, err := lay.EnsureDir(pkg); err != nil {
		t.Fatal(err)
	}

	base := bytes.Repeat([]byte("aaus-delta-engine-fixture-content-"), 500)
	versions := []int64{1, 2, 3}
	err := db.Transaction(ctx, func(tx *store.Tx) error {
		if err := store.EnsurePackageRow(tx, pkg); err != nil {
			return err
		}
		for i, v := range versions {
			content := append(append([]byte{}, base...), []byte(bytes.Repeat([]byte{byte('a' + i)}, 64))...)
			src := filepath.Join(t.TempDir(), "src.apk")
			if err := os.WriteFile(src, content, 0o644); err != nil {
				return err
			}
			sha, err := apkid.Sha256FromRaw(make([]byte, 32))
			if err != nil {
				return err
			}
			desc := &apkinfo.Descriptor{
				Package:     pkg,
				VersionCode: apkid.VersionCode(v),
				VersionName: "1.0",
				SHA256:      sha,
			}
			if err := store.UpsertApks(tx, lay, pkg, []store.ApkInsert{{Descriptor: desc, SourcePath: src}}, apkid.Now()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seeding releases: %v", err)
	}
}

func TestEnginePackageTaskGeneratesDeltasForEachBase(t *testing.T) {
	dbDir := t.TempDir()
	db, err := store.Open(filepath.Join(dbDir, "repo.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	root := t.TempDir()
	lay := layout.New(root)
	pkg := mustPkg(t, "com.example.app")
	seedReleases(t, db, lay, pkg)

	e, err := New(db, lay, t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.ForPackage(pkg)
	e.StartPrinting()
	failed := e.Wait()
	if len(failed) != 0 {
		t.Fatalf("unexpected failures: %v", failed)
	}

	records, err := db.GetDeltaRecords(context.Background(), pkg)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d delta records, want 2 (bases 1 and 2 -> target 3)", len(records))
	}
	for _, r := range records {
		if r.Target != apkid.VersionCode(3) {
			t.Errorf("record target = %v, want 3", r.Target)
		}
		if _, err := os.Stat(lay.DeltaFile(pkg, r.Base, r.Target)); err != nil {
			t.Errorf("delta file missing for base %v: %v", r.Base, err)
		}
	}
}

func TestRemoveStaleDeltaFiles(t *testing.T) {
	root := t.TempDir()
	lay := layout.New(root)
	pkg := mustPkg(t, "com.example.app")
	if _, err := lay.EnsureDir(pkg); err != nil {
		t.Fatal(err)
	}

	stale := lay.DeltaFile(pkg, apkid.VersionCode(1), apkid.VersionCode(2))
	fresh := lay.DeltaFile(pkg, apkid.VersionCode(1), apkid.VersionCode(3))
	for _, p := range []string{stale, fresh} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	removeStaleDeltaFiles(lay, pkg, apkid.VersionCode(3))

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale delta file should have been removed, stat err = %v", err)
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh delta file should remain: %v", err)
	}
}

func TestAdmitDefersThenFails(t *testing.T) {
	e := &Engine{
		sem:              semaphore.NewWeighted(1),
		freeSpaceAtStart: 100,
		tmpDir:           t.TempDir(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := e.admit(ctx, 1_000_000); err == nil {
		t.Fatal("expected admit to fail once the context is cancelled mid-defer")
	}
}

func TestAdmitNotForcedWhenBudgetFitsImmediately(t *testing.T) {
	e := &Engine{
		sem:              semaphore.NewWeighted(1),
		freeSpaceAtStart: SafetyMargin + 1_000_000,
		tmpDir:           t.TempDir(),
	}
	forced, err := e.admit(context.Background(), 1000)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if forced {
		t.Error("admit should not report forced when the budget fits on the first attempt")
	}
}
