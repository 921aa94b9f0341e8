package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andrel/aaus/internal/apkid"
	"github.com/andrel/aaus/internal/layout"
	"github.com/andrel/aaus/internal/signer"
	"github.com/andrel/aaus/internal/store"
)

// Publisher regenerates and signs the repository's externally-visible
// metadata: one latest-metadata.json per package, bulk-metadata.json, and
// index.txt (spec §4.H).
type Publisher struct {
	db  *store.DB
	lay *layout.Layout
	key *signer.PrivateKey
}

// New returns a Publisher writing through lay and signing with key.
func New(db *store.DB, lay *layout.Layout, key *signer.PrivateKey) *Publisher {
	return &Publisher{db: db, lay: lay, key: key}
}

// Publish rewrites and signs every package's metadata, the bulk metadata
// document, the index, and syncs icons, all stamped with ts (spec line
// 134: "a single timestamp captured at step 1" of insertApks; line 194:
// "Index and per-package metadata files for one invocation share the same
// lastUpdateTimestamp").
func (p *Publisher) Publish(ctx context.Context, ts apkid.Timestamp) error {
	pkgs, _, err := p.lay.AppDirectoryListing()
	if err != nil {
		return fmt.Errorf("listing packages: %w", err)
	}
	sortPackagesAscending(pkgs)

	bulk := BulkMetadata{Timestamp: int64(ts)}
	for _, pkg := range pkgs {
		meta, err := buildPackageMetadata(ctx, p.db, pkg)
		if err != nil {
			return fmt.Errorf("building metadata for %s: %w", pkg, err)
		}
		meta.LastUpdate = int64(ts)
		if err := p.syncIcon(ctx, pkg); err != nil {
			return fmt.Errorf("syncing icon for %s: %w", pkg, err)
		}
		if err := p.writePackageMetadata(pkg, meta); err != nil {
			return err
		}
		bulk.Packages = append(bulk.Packages, *meta)
	}

	if err := p.writeBulkMetadata(&bulk); err != nil {
		return err
	}
	if err := p.writeIndex(ctx, pkgs, ts); err != nil {
		return err
	}
	return nil
}

// Resign rewrites and signs a single package's metadata document without
// touching the bulk metadata or index, recomputed from current store state
// so the signature always covers up-to-date content (the "resign" CLI
// command, for re-signing after a key rotation).
func (p *Publisher) Resign(ctx context.Context, pkg apkid.PackageName) error {
	meta, err := buildPackageMetadata(ctx, p.db, pkg)
	if err != nil {
		return fmt.Errorf("building metadata for %s: %w", pkg, err)
	}
	return p.writePackageMetadata(pkg, meta)
}

func (p *Publisher) writePackageMetadata(pkg apkid.PackageName, meta *PackageMetadata) error {
	body, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata for %s: %w", pkg, err)
	}
	if err := writeSignedAtomic(p.key, p.lay.MetadataFile(pkg), body); err != nil {
		return fmt.Errorf("writing metadata for %s: %w", pkg, err)
	}
	return nil
}

func (p *Publisher) writeBulkMetadata(bulk *BulkMetadata) error {
	body, err := json.MarshalIndent(bulk, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling bulk metadata: %w", err)
	}
	if err := writeSignedAtomic(p.key, p.lay.BulkMetadataFile(), body); err != nil {
		return fmt.Errorf("writing bulk metadata: %w", err)
	}
	return nil
}

// syncIcon writes or removes icon.png to match the current store content,
// so hasIcon in the metadata document is never stale relative to disk.
func (p *Publisher) syncIcon(ctx context.Context, pkg apkid.PackageName) error {
	app, err := p.db.GetApp(ctx, pkg)
	if err != nil {
		return err
	}
	iconPath := p.lay.IconFile(pkg)
	if len(app.Icon) == 0 {
		if err := os.Remove(iconPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return writeFileAtomic(iconPath, app.Icon)
}

// writeSignedAtomic marshals a signature line ahead of body and installs
// both in one write-temp-fsync-rename cycle (spec §5: "Signing operates on
// the temp path before rename").
func writeSignedAtomic(key *signer.PrivateKey, path string, body []byte) error {
	sigLine, err := signer.SignBytes(key, body)
	if err != nil {
		return fmt.Errorf("signing: %w", err)
	}
	content := append([]byte(sigLine+"\n"), body...)
	return writeFileAtomic(path, content)
}

// writeFileAtomic writes content to a sibling temp path, fsyncs, then
// renames over path (spec §5).
func writeFileAtomic(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", path, err)
	}
	tmp := path + ".publish.tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("fsyncing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("installing %s: %w", path, err)
	}
	return nil
}
