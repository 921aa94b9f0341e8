// Package layout owns canonical on-disk path construction for every
// artifact the repository serves (spec §4.A). Its only I/O is directory
// listing, package-directory creation and removal, and advisory locking.
package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/andrel/aaus/internal/apkid"
)

// Layout resolves canonical paths rooted at a repository directory.
type Layout struct {
	Root string
}

// New returns a Layout rooted at root.
func New(root string) *Layout {
	return &Layout{Root: root}
}

// DirForPackage returns <root>/<package>.
func (l *Layout) DirForPackage(pkg apkid.PackageName) string {
	return filepath.Join(l.Root, pkg.String())
}

// ApkFile returns <root>/<package>/<versionCode>.apk.
func (l *Layout) ApkFile(pkg apkid.PackageName, v apkid.VersionCode) string {
	return filepath.Join(l.DirForPackage(pkg), fmt.Sprintf("%d.apk", v.Int64()))
}

// ApkIdsigFile returns the optional v4 signature sidecar path for a release.
func (l *Layout) ApkIdsigFile(pkg apkid.PackageName, v apkid.VersionCode) string {
	return l.ApkFile(pkg, v) + ".idsig"
}

// DeltaFile returns <root>/<package>/delta-<base>-to-<target>.gz.
func (l *Layout) DeltaFile(pkg apkid.PackageName, base, target apkid.VersionCode) string {
	return filepath.Join(l.DirForPackage(pkg), fmt.Sprintf("delta-%d-to-%d.gz", base.Int64(), target.Int64()))
}

// MetadataFile returns <root>/<package>/latest-metadata.json.
func (l *Layout) MetadataFile(pkg apkid.PackageName) string {
	return filepath.Join(l.DirForPackage(pkg), "latest-metadata.json")
}

// IconFile returns <root>/<package>/icon.png.
func (l *Layout) IconFile(pkg apkid.PackageName) string {
	return filepath.Join(l.DirForPackage(pkg), "icon.png")
}

// IndexFile returns <root>/index.txt.
func (l *Layout) IndexFile() string {
	return filepath.Join(l.Root, "index.txt")
}

// BulkMetadataFile returns <root>/bulk-metadata.json.
func (l *Layout) BulkMetadataFile() string {
	return filepath.Join(l.Root, "bulk-metadata.json")
}

// PublicKeyFile returns <root>/public-key.pem.
func (l *Layout) PublicKeyFile() string {
	return filepath.Join(l.Root, "public-key.pem")
}

// LockFile returns the advisory repository lock path (§5).
func (l *Layout) LockFile() string {
	return filepath.Join(l.Root, ".aaus.lock")
}

// parsedDelta is a delta file name decomposed into its base/target pair.
type parsedDelta struct {
	Base, Target apkid.VersionCode
	Path         string
}

// ParseDeltaFilename extracts (base, target) from a "delta-<b>-to-<t>.gz"
// basename. It returns ok=false for any other filename.
func ParseDeltaFilename(name string) (base, target apkid.VersionCode, ok bool) {
	var b, t int64
	n, err := fmt.Sscanf(name, "delta-%d-to-%d.gz", &b, &t)
	if err != nil || n != 2 {
		return 0, 0, false
	}
	if name != fmt.Sprintf("delta-%d-to-%d.gz", b, t) {
		return 0, 0, false
	}
	return apkid.VersionCode(b), apkid.VersionCode(t), true
}

// AppDirectoryListing enumerates first-level subdirectories of the
// repository root that are valid package names, sorted ascending. Any
// first-level directory that is not a valid package name is reported as a
// separate slice so the caller (validate-repo) can flag an InvalidRepoState.
func (l *Layout) AppDirectoryListing() (packages []apkid.PackageName, invalid []string, err error) {
	entries, err := os.ReadDir(l.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("listing repository root: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		pkg, perr := apkid.NewPackageName(name)
		if perr != nil {
			invalid = append(invalid, name)
			continue
		}
		packages = append(packages, pkg)
	}
	sort.Slice(packages, func(i, j int) bool { return packages[i] < packages[j] })
	return packages, invalid, nil
}

// DeltaFilesInPackageDir lists every delta-*.gz file present under a
// package's directory, decomposed into (base, target, path) triples.
// Files that don't match the delta naming convention are ignored.
func (l *Layout) DeltaFilesInPackageDir(pkg apkid.PackageName) ([]parsedDelta, error) {
	dir := l.DirForPackage(pkg)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	var out []parsedDelta
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base, target, ok := ParseDeltaFilename(e.Name())
		if !ok {
			continue
		}
		out = append(out, parsedDelta{Base: base, Target: target, Path: filepath.Join(dir, e.Name())})
	}
	return out, nil
}

// EnsureDir creates a package directory if absent, returning whether it
// was newly created (callers use this to build the insertion rollback list).
func (l *Layout) EnsureDir(pkg apkid.PackageName) (created bool, err error) {
	dir := l.DirForPackage(pkg)
	if _, statErr := os.Stat(dir); statErr == nil {
		return false, nil
	} else if !os.IsNotExist(statErr) {
		return false, statErr
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("creating package directory %s: %w", dir, err)
	}
	return true, nil
}

// RemoveDir deletes a package directory and everything under it. Used on
// insertion rollback for directories created during the failed transaction.
func (l *Layout) RemoveDir(pkg apkid.PackageName) error {
	return os.RemoveAll(l.DirForPackage(pkg))
}
