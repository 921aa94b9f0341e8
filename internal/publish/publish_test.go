package publish

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andrel/aaus/internal/apkid"
	"github.com/andrel/aaus/internal/apkinfo"
	"github.com/andrel/aaus/internal/layout"
	"github.com/andrel/aaus/internal/signer"
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

func testKey(t *testing.T) (*signer.PrivateKey, *ecdsa.PublicKey) {
	t.Helper()
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(raw)
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "key.pem")
	block := &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatal(err)
	}
	key, err := signer.LoadPrivateKey(path)
	if err != nil {
		t.Fatal(err)
	}
	return key, &raw.PublicKey
}

func seedOneRelease(t *testing.T, db *store.DB, lay *layout.Layout, pkg apkid.PackageName, version int64) {
	t.Helper()
	ctx := context.Background()
	if _, err := lay.EnsureDir(pkg); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(t.TempDir(), "src.apk")
	if err := os.WriteFile(src, []byte{byte(version)}, 0o644); err != nil {
		t.Fatal(err)
	}
	sha, err := apkid.Sha256FromRaw(make([]byte, 32))
	if err != nil {
		t.Fatal(err)
	}
	digest, err := apkid.NewCertDigest(strings.Repeat("aa", 32))
	if err != nil {
		t.Fatal(err)
	}
	desc := &apkinfo.Descriptor{
		Package:     pkg,
		VersionCode: apkid.VersionCode(version),
		VersionName: "1.0",
		MinSDK:      21,
		Label:       "Example",
		SignerCerts: apkid.NewCertDigestSet(digest),
		SHA256:      sha,
	}
	err = db.Transaction(ctx, func(tx *store.Tx) error {
		if err := store.EnsurePackageRow(tx, pkg); err != nil {
			return err
		}
		return store.UpsertApks(tx, lay, pkg, []store.ApkInsert{{Descriptor: desc, SourcePath: src}}, apkid.Now())
	})
	if err != nil {
		t.Fatalf("seeding release: %v", err)
	}
}

func TestPublishWritesSignedArtifacts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "repo.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	lay := layout.New(dir)
	key, pub := testKey(t)

	pkg := mustPkg(t, "com.example.app")
	seedOneRelease(t, db, lay, pkg, 7)

	pub2 := New(db, lay, key)
	ts := apkid.Now()
	if err := pub2.Publish(ctx, ts); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	for _, f := range []string{lay.MetadataFile(pkg), lay.BulkMetadataFile(), lay.IndexFile()} {
		if err := signer.Verify(pub, f); err != nil {
			t.Errorf("Verify(%s): %v", f, err)
		}
	}

	idx, err := os.ReadFile(lay.IndexFile())
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(stripSigLine(string(idx))), "\n")
	if len(lines) != 2 {
		t.Fatalf("index lines = %v, want 2 (one package + timestamp)", lines)
	}
	if lines[0] != "com.example.app:7" {
		t.Errorf("index first line = %q", lines[0])
	}
}

func TestResignRewritesSinglePackage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "repo.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	lay := layout.New(dir)
	key, pub := testKey(t)

	pkg := mustPkg(t, "com.example.app")
	seedOneRelease(t, db, lay, pkg, 3)

	p := New(db, lay, key)
	if err := p.Publish(ctx, apkid.Now()); err != nil {
		t.Fatal(err)
	}
	if err := p.Resign(ctx, pkg); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if err := signer.Verify(pub, lay.MetadataFile(pkg)); err != nil {
		t.Errorf("Verify after resign: %v", err)
	}
}

// stripSigLine removes the leading Base64 signature line a signed file
// carries, leaving just the body for content assertions.
func stripSigLine(s string) string {
	r := bufio.NewReader(strings.NewReader(s))
	if _, err := r.ReadString('\n'); err != nil {
		return s
	}
	rest, _ := r.ReadString(0)
	return rest
}
