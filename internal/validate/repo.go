package validate

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/andrel/aaus/internal/aauserr"
	"github.com/andrel/aaus/internal/apkid"
	"github.com/andrel/aaus/internal/layout"
	"github.com/andrel/aaus/internal/store"
)

// RepoChecker recomputes the on-disk invariants the rest of the engine
// assumes hold: every release row has a matching file whose hash agrees
// with the store, and no delta file survives whose record was deleted.
// Supplements spec §4.F with a standalone consistency walk (the
// `validate-repo` command), in the spirit of the chain/dependency checks
// E already performs at insertion time.
type RepoChecker struct {
	DB  *store.DB
	Lay *layout.Layout
}

// Check walks the repository and returns every InvalidRepoState violation
// found; a nil/empty result means the tree matches the store exactly.
func (c *RepoChecker) Check(ctx context.Context) []error {
	var errs []error

	pkgs, invalid, err := c.Lay.AppDirectoryListing()
	if err != nil {
		return []error{aauserr.New(aauserr.InvalidRepoState, "validate-repo", err)}
	}
	for _, name := range invalid {
		errs = append(errs, aauserr.New(aauserr.InvalidRepoState, "validate-repo",
			fmt.Errorf("%s is not a valid package directory name", name)))
	}

	for _, pkg := range pkgs {
		errs = append(errs, c.checkPackage(ctx, pkg)...)
	}
	return errs
}

func (c *RepoChecker) checkPackage(ctx context.Context, pkg apkid.PackageName) []error {
	var errs []error

	releases, err := c.DB.AllReleases(ctx, pkg)
	if err != nil {
		return []error{aauserr.New(aauserr.InvalidRepoState, "validate-repo", fmt.Errorf("reading releases for %s: %w", pkg, err))}
	}
	for _, r := range releases {
		path := c.Lay.ApkFile(pkg, r.VersionCode)
		sum, err := hashFile(path)
		if err != nil {
			errs = append(errs, aauserr.New(aauserr.InvalidRepoState, "validate-repo",
				fmt.Errorf("%s@%s: apk file missing or unreadable: %w", pkg, r.VersionCode, err)))
			continue
		}
		if sum != r.ApkSHA256 {
			errs = append(errs, aauserr.New(aauserr.InvalidRepoState, "validate-repo",
				fmt.Errorf("%s@%s: on-disk apk hash %s does not match store hash %s", pkg, r.VersionCode, sum, r.ApkSHA256)))
		}
	}

	records, err := c.DB.GetDeltaRecords(ctx, pkg)
	if err != nil {
		return append(errs, aauserr.New(aauserr.InvalidRepoState, "validate-repo", fmt.Errorf("reading delta records for %s: %w", pkg, err)))
	}
	recordByPair := make(map[[2]apkid.VersionCode]apkid.Sha256, len(records))
	for _, r := range records {
		recordByPair[[2]apkid.VersionCode{r.Base, r.Target}] = r.SHA256
	}

	files, err := c.Lay.DeltaFilesInPackageDir(pkg)
	if err != nil {
		return append(errs, aauserr.New(aauserr.InvalidRepoState, "validate-repo", fmt.Errorf("listing delta files for %s: %w", pkg, err)))
	}
	seen := make(map[[2]apkid.VersionCode]bool, len(files))
	for _, f := range files {
		key := [2]apkid.VersionCode{f.Base, f.Target}
		seen[key] = true
		sha, ok := recordByPair[key]
		if !ok {
			errs = append(errs, aauserr.New(aauserr.InvalidRepoState, "validate-repo",
				fmt.Errorf("%s: delta file %s has no matching DeltaRecord", pkg, f.Path)))
			continue
		}
		sum, err := hashFile(f.Path)
		if err != nil {
			errs = append(errs, aauserr.New(aauserr.InvalidRepoState, "validate-repo", fmt.Errorf("%s: %w", f.Path, err)))
			continue
		}
		if sum != sha {
			errs = append(errs, aauserr.New(aauserr.InvalidRepoState, "validate-repo",
				fmt.Errorf("%s: on-disk delta hash %s does not match store hash %s", f.Path, sum, sha)))
		}
	}
	for key := range recordByPair {
		if !seen[key] {
			errs = append(errs, aauserr.New(aauserr.InvalidRepoState, "validate-repo",
				fmt.Errorf("%s: DeltaRecord %d->%d has no matching file on disk", pkg, key[0].Int64(), key[1].Int64())))
		}
	}

	return errs
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
