package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/andrel/aaus/internal/apkid"
	"github.com/andrel/aaus/internal/apkinfo"
	"github.com/andrel/aaus/internal/layout"
)

func mustPkg(t *testing.T, s string) apkid.PackageName {
	t.Helper()
	p, err := apkid.NewPackageName(s)
	if err != nil {
		t.Fatalf("NewPackageName(%q): %v", s, err)
	}
	return p
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "repo.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTransactionCommitAndRollbackHooks(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var hookRan bool
	err := db.Transaction(ctx, func(tx *Tx) error {
		tx.AfterRollback(func() { hookRan = true })
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	if hookRan {
		t.Error("rollback hook ran on commit")
	}

	wantErr := errors.New("boom")
	hookRan = false
	err = db.Transaction(ctx, func(tx *Tx) error {
		tx.AfterRollback(func() { hookRan = true })
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Transaction error = %v, want %v", err, wantErr)
	}
	if !hookRan {
		t.Error("rollback hook did not run on error")
	}
}

func TestUpsertApksAndGetLatestRelease(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	root := t.TempDir()
	lay := layout.New(root)
	pkg := mustPkg(t, "com.example.app")

	if _, err := lay.EnsureDir(pkg); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(t.TempDir(), "src.apk")
	if err := os.WriteFile(src, []byte("fake apk bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	sha, err := apkid.Sha256FromRaw(make([]byte, 32))
	if err != nil {
		t.Fatal(err)
	}
	digest, err := apkid.NewCertDigest("aa" + stringsRepeat("bb", 31))
	if err != nil {
		t.Fatal(err)
	}
	desc := &apkinfo.Descriptor{
		Package:     pkg,
		VersionCode: apkid.VersionCode(7),
		VersionName: "1.0",
		MinSDK:      21,
		Label:       "Example",
		SignerCerts: apkid.NewCertDigestSet(digest),
		SHA256:      sha,
	}

	err = db.Transaction(ctx, func(tx *Tx) error {
		if err := EnsurePackageRow(tx, pkg); err != nil {
			return err
		}
		return UpsertApks(tx, lay, pkg, []ApkInsert{{Descriptor: desc, SourcePath: src}}, apkid.Now())
	})
	if err != nil {
		t.Fatalf("inserting: %v", err)
	}

	rel, err := db.GetLatestRelease(ctx, pkg)
	if err != nil {
		t.Fatalf("GetLatestRelease: %v", err)
	}
	if rel == nil {
		t.Fatal("GetLatestRelease returned nil")
	}
	if rel.VersionCode != apkid.VersionCode(7) {
		t.Errorf("VersionCode = %v, want 7", rel.VersionCode)
	}
	if !rel.Certs.Equal(apkid.NewCertDigestSet(digest)) {
		t.Errorf("Certs = %v, want {%v}", rel.Certs, digest)
	}

	app, err := db.GetApp(ctx, pkg)
	if err != nil {
		t.Fatalf("GetApp: %v", err)
	}
	if app.Label != "Example" {
		t.Errorf("Label = %q, want Example", app.Label)
	}

	if _, err := os.Stat(lay.ApkFile(pkg, apkid.VersionCode(7))); err != nil {
		t.Errorf("copied APK missing: %v", err)
	}
}

func TestGroupLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	a := mustPkg(t, "com.example.a")
	b := mustPkg(t, "com.example.b")

	err := db.Transaction(ctx, func(tx *Tx) error {
		if err := EnsurePackageRow(tx, a); err != nil {
			return err
		}
		return EnsurePackageRow(tx, b)
	})
	if err != nil {
		t.Fatal(err)
	}

	g, err := apkid.NewGroupName("core")
	if err != nil {
		t.Fatal(err)
	}
	err = db.Transaction(ctx, func(tx *Tx) error {
		return CreateGroup(tx, g, []apkid.PackageName{a, b}, apkid.Now())
	})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	m, err := db.GetGroupToAppMap(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(m[g]) != 2 {
		t.Errorf("group %s has %d members, want 2", g, len(m[g]))
	}

	err = db.Transaction(ctx, func(tx *Tx) error {
		return DeleteGroup(tx, g, apkid.Now())
	})
	if err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	m, err = db.GetGroupToAppMap(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(m[g]) != 0 {
		t.Errorf("group %s still has members after delete: %v", g, m[g])
	}
}

func stringsRepeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
