package layout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/andrel/aaus/internal/apkid"
)

func mustPkg(t *testing.T, s string) apkid.PackageName {
	t.Helper()
	p, err := apkid.NewPackageName(s)
	if err != nil {
		t.Fatalf("NewPackageName(%q): %v", s, err)
	}
	return p
}

func TestPaths(t *testing.T) {
	l := New("/repo")
	pkg := mustPkg(t, "com.example.app")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"dir", l.DirForPackage(pkg), "/repo/com.example.app"},
		{"apk", l.ApkFile(pkg, apkid.VersionCode(7)), "/repo/com.example.app/7.apk"},
		{"idsig", l.ApkIdsigFile(pkg, apkid.VersionCode(7)), "/repo/com.example.app/7.apk.idsig"},
		{"delta", l.DeltaFile(pkg, apkid.VersionCode(2), apkid.VersionCode(7)), "/repo/com.example.app/delta-2-to-7.gz"},
		{"metadata", l.MetadataFile(pkg), "/repo/com.example.app/latest-metadata.json"},
		{"icon", l.IconFile(pkg), "/repo/com.example.app/icon.png"},
		{"index", l.IndexFile(), "/repo/index.txt"},
		{"bulk", l.BulkMetadataFile(), "/repo/bulk-metadata.json"},
		{"pubkey", l.PublicKeyFile(), "/repo/public-key.pem"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if filepath.ToSlash(tt.got) != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseDeltaFilename(t *testing.T) {
	tests := []struct {
		name       string
		in         string
		wantBase   apkid.VersionCode
		wantTarget apkid.VersionCode
		wantOK     bool
	}{
		{"valid", "delta-2-to-7.gz", 2, 7, true},
		{"not a delta", "7.apk", 0, 0, false},
		{"malformed", "delta-x-to-y.gz", 0, 0, false},
		{"trailing garbage", "delta-2-to-7.gz.bak", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, target, ok := ParseDeltaFilename(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if base != tt.wantBase || target != tt.wantTarget {
				t.Errorf("got (%d,%d), want (%d,%d)", base, target, tt.wantBase, tt.wantTarget)
			}
		})
	}
}

func TestAppDirectoryListing(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"com.example.app", "com.example.lib", "not-a-package", "org.foo.bar"} {
		if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	// A regular file at the top level should be ignored, not reported invalid.
	if err := os.WriteFile(filepath.Join(root, "README.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(root)
	pkgs, invalid, err := l.AppDirectoryListing()
	if err != nil {
		t.Fatalf("AppDirectoryListing: %v", err)
	}
	if len(pkgs) != 3 {
		t.Errorf("got %d packages, want 3: %v", len(pkgs), pkgs)
	}
	if len(invalid) != 1 || invalid[0] != "not-a-package" {
		t.Errorf("invalid = %v, want [not-a-package]", invalid)
	}
}

func TestEnsureDirAndRemoveDir(t *testing.T) {
	root := t.TempDir()
	l := New(root)
	pkg := mustPkg(t, "com.example.app")

	created, err := l.EnsureDir(pkg)
	if err != nil || !created {
		t.Fatalf("EnsureDir: created=%v err=%v", created, err)
	}
	created, err = l.EnsureDir(pkg)
	if err != nil || created {
		t.Fatalf("second EnsureDir: created=%v err=%v", created, err)
	}
	if err := l.RemoveDir(pkg); err != nil {
		t.Fatalf("RemoveDir: %v", err)
	}
	if _, err := os.Stat(l.DirForPackage(pkg)); !os.IsNotExist(err) {
		t.Errorf("directory still exists after RemoveDir")
	}
}
