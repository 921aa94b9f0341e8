// Package insert is the Insertion Orchestrator (spec §4.F): the
// transactional entry point that turns a batch of APK files into
// committed Release rows, triggers delta generation, and republishes
// signed metadata — the single place every other component is wired
// together.
package insert

import (
	"context"
	"fmt"
	"os"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/andrel/aaus/internal/aauserr"
	"github.com/andrel/aaus/internal/apkid"
	"github.com/andrel/aaus/internal/apkinfo"
	"github.com/andrel/aaus/internal/delta"
	"github.com/andrel/aaus/internal/editor"
	"github.com/andrel/aaus/internal/layout"
	"github.com/andrel/aaus/internal/publish"
	"github.com/andrel/aaus/internal/signer"
	"github.com/andrel/aaus/internal/store"
	"github.com/andrel/aaus/internal/ui"
	"github.com/andrel/aaus/internal/validate"
)

// Options configures one insertApks call.
type Options struct {
	Paths       []string
	Key         *signer.PrivateKey
	PromptNotes bool
}

// Orchestrator wires the store, layout, delta engine, and signer together
// behind the single insertApks entry point.
type Orchestrator struct {
	DB     *store.DB
	Lay    *layout.Layout
	TmpDir string
}

// New returns an Orchestrator over db/lay, generating deltas into tmpDir.
func New(db *store.DB, lay *layout.Layout, tmpDir string) *Orchestrator {
	return &Orchestrator{DB: db, Lay: lay, TmpDir: tmpDir}
}

// InsertApks runs the full seven-step insertion flow (spec §4.F).
func (o *Orchestrator) InsertApks(ctx context.Context, opts Options) error {
	if err := o.reconcileSigningKey(opts.Key); err != nil {
		return err
	}
	timestamp := apkid.Now()

	descriptors, err := parseAll(opts.Paths)
	if err != nil {
		return err
	}

	groups := groupByPackage(descriptors)

	universe, err := o.buildUniverse(ctx, groups)
	if err != nil {
		return err
	}
	var batch []*apkinfo.Descriptor
	for _, g := range groups {
		batch = append(batch, g...)
	}
	result := validate.ValidateBatch(batch, universe)
	for _, w := range result.Warnings {
		ui.PrintWarning(w.String())
	}
	if !result.OK() {
		return fmt.Errorf("validation failed with %d error(s): %w", len(result.Errors), result.Errors[0])
	}

	engine, err := delta.New(o.DB, o.Lay, o.TmpDir)
	if err != nil {
		return fmt.Errorf("starting delta engine: %w", err)
	}

	var createdDirs []apkid.PackageName
	var writtenPackages []apkid.PackageName

	err = o.DB.Transaction(ctx, func(tx *store.Tx) error {
		tx.AfterRollback(func() {
			for _, pkg := range createdDirs {
				o.Lay.RemoveDir(pkg)
			}
		})

		for pkg, descs := range groups {
			sortAscending(descs)

			latest, err := o.DB.GetLatestRelease(ctx, pkg)
			if err != nil {
				return fmt.Errorf("reading latest release for %s: %w", pkg, err)
			}
			if latest != nil && descs[0].VersionCode <= latest.VersionCode {
				ui.PrintWarning(fmt.Sprintf("%s: incoming version %s is not newer than repo's %s, skipping group",
					pkg, descs[0].VersionCode, latest.VersionCode))
				continue
			}

			if err := store.EnsurePackageRow(tx, pkg); err != nil {
				return err
			}
			created, err := o.Lay.EnsureDir(pkg)
			if err != nil {
				return aauserr.New(aauserr.InsertFailed, fmt.Sprintf("insert %s", pkg), err)
			}
			if created {
				createdDirs = append(createdDirs, pkg)
			}

			history := chainHistory(latest, descs)
			if err := validate.ValidateChain(pkg, history); err != nil {
				return err
			}

			inserts, err := o.buildInserts(pkg, descs, opts.PromptNotes)
			if err != nil {
				return err
			}

			if err := store.UpsertApks(tx, o.Lay, pkg, inserts, timestamp); err != nil {
				return err
			}

			writtenPackages = append(writtenPackages, pkg)
			engine.ForPackage(pkg)
		}
		return nil
	})
	if err != nil {
		return err
	}

	engine.StartPrinting()
	failed := engine.Wait()
	for _, f := range failed {
		ui.PrintWarning(fmt.Sprintf("delta generation failed for %s: %v", f.Package, f.Err))
	}

	if len(writtenPackages) == 0 {
		return nil
	}

	pub := publish.New(o.DB, o.Lay, opts.Key)
	if err := pub.Publish(ctx, timestamp); err != nil {
		return aauserr.New(aauserr.InsertFailed, "publish", fmt.Errorf("repository store committed but public surface regeneration failed: %w", err))
	}
	return nil
}

// reconcileSigningKey implements step 1: compare the derived public key
// against publicKeyFile, writing it if absent or failing on mismatch.
func (o *Orchestrator) reconcileSigningKey(key *signer.PrivateKey) error {
	pubPEM, err := key.PublicKeyPEM()
	if err != nil {
		return fmt.Errorf("deriving public key: %w", err)
	}
	path := o.Lay.PublicKeyFile()
	existing, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if err := os.WriteFile(path, []byte(pubPEM), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		return nil
	}
	same, err := signer.SamePublicKey(existing, []byte(pubPEM))
	if err != nil {
		return fmt.Errorf("comparing public keys: %w", err)
	}
	if !same {
		return aauserr.New(aauserr.RepoSigningKeyMismatch, "insert", fmt.Errorf("key does not match %s", path))
	}
	return nil
}

// parseAll implements step 2's parallel parse phase.
func parseAll(paths []string) ([]*apkinfo.Descriptor, error) {
	descs := make([]*apkinfo.Descriptor, len(paths))
	var g errgroup.Group
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			d, err := apkinfo.Parse(p)
			if err != nil {
				return aauserr.New(aauserr.AppDetailParseFailed, fmt.Sprintf("parse %s", p), err)
			}
			descs[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return descs, nil
}

func groupByPackage(descs []*apkinfo.Descriptor) map[apkid.PackageName][]*apkinfo.Descriptor {
	groups := make(map[apkid.PackageName][]*apkinfo.Descriptor)
	for _, d := range descs {
		groups[d.Package] = append(groups[d.Package], d)
	}
	return groups
}

func sortAscending(descs []*apkinfo.Descriptor) {
	sort.Slice(descs, func(i, j int) bool { return descs[i].VersionCode < descs[j].VersionCode })
}

// buildUniverse assembles the combined repo-plus-batch candidate view for
// the validator (spec §4.E: "either already in the repo or in the same
// insertion batch").
func (o *Orchestrator) buildUniverse(ctx context.Context, groups map[apkid.PackageName][]*apkinfo.Descriptor) (validate.Universe, error) {
	var candidates []validate.Candidate
	seen := make(map[apkid.PackageName]bool)
	for pkg, descs := range groups {
		for _, d := range descs {
			candidates = append(candidates, validate.Candidate{Package: d.Package, VersionCode: d.VersionCode, Certs: d.SignerCerts})
		}
		seen[pkg] = true
	}

	pkgs, _, err := o.Lay.AppDirectoryListing()
	if err != nil {
		return validate.Universe{}, fmt.Errorf("listing repository packages: %w", err)
	}
	for _, pkg := range pkgs {
		releases, err := o.DB.AllReleases(ctx, pkg)
		if err != nil {
			return validate.Universe{}, fmt.Errorf("loading releases for %s: %w", pkg, err)
		}
		for _, r := range releases {
			candidates = append(candidates, validate.Candidate{Package: pkg, VersionCode: r.VersionCode, Certs: r.Certs})
		}
	}
	return validate.Universe{Candidates: candidates}, nil
}

// chainHistory merges an existing latest release's cert set (if any) ahead
// of the incoming batch's ascending cert sets, for ValidateChain.
func chainHistory(latest *store.Release, descs []*apkinfo.Descriptor) []apkid.CertDigestSet {
	var history []apkid.CertDigestSet
	if latest != nil {
		history = append(history, latest.Certs)
	}
	for _, d := range descs {
		history = append(history, d.SignerCerts)
	}
	return history
}

// buildInserts implements step 5's release-notes prompt (for the
// highest-version descriptor only) and produces the ApkInsert batch.
func (o *Orchestrator) buildInserts(pkg apkid.PackageName, descs []*apkinfo.Descriptor, promptNotes bool) ([]store.ApkInsert, error) {
	inserts := make([]store.ApkInsert, len(descs))
	for i, d := range descs {
		inserts[i] = store.ApkInsert{Descriptor: d, SourcePath: d.FilePath}
	}

	if !promptNotes {
		return inserts, nil
	}
	highest := descs[len(descs)-1]
	notes, err := editor.EditReleaseNotes(pkg, highest.VersionCode, nil, apkid.Now())
	if err != nil {
		return nil, aauserr.New(aauserr.EditFailed, fmt.Sprintf("edit notes for %s@%s", pkg, highest.VersionCode), err)
	}
	inserts[len(inserts)-1].ReleaseNotes = notes
	return inserts, nil
}
