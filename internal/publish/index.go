package publish

import (
	"bytes"
	"context"
	"fmt"

	"github.com/andrel/aaus/internal/apkid"
	"github.com/andrel/aaus/internal/store"
)

// writeIndex renders and signs index.txt: one "<pkg>:<versionCode>" line
// per package (latest version), followed by a final line holding the
// publish timestamp (spec line 220).
func (p *Publisher) writeIndex(ctx context.Context, pkgs []apkid.PackageName, ts apkid.Timestamp) error {
	body, err := renderIndex(ctx, p.db, pkgs, ts)
	if err != nil {
		return fmt.Errorf("rendering index: %w", err)
	}
	if err := writeSignedAtomic(p.key, p.lay.IndexFile(), body); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return nil
}

func renderIndex(ctx context.Context, db *store.DB, pkgs []apkid.PackageName, ts apkid.Timestamp) ([]byte, error) {
	var buf bytes.Buffer
	for _, pkg := range pkgs {
		latest, err := db.GetLatestRelease(ctx, pkg)
		if err != nil {
			return nil, fmt.Errorf("loading latest release for %s: %w", pkg, err)
		}
		if latest == nil {
			continue
		}
		fmt.Fprintf(&buf, "%s:%d\n", pkg, latest.VersionCode.Int64())
	}
	fmt.Fprintf(&buf, "%d\n", int64(ts))
	return buf.Bytes(), nil
}
