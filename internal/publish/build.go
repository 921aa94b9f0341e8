package publish

import (
	"context"
	"fmt"

	"github.com/andrel/aaus/internal/apkid"
	"github.com/andrel/aaus/internal/store"
)

// buildPackageMetadata assembles one package's metadata document from the
// store's current state (spec line 170).
func buildPackageMetadata(ctx context.Context, db *store.DB, pkg apkid.PackageName) (*PackageMetadata, error) {
	app, err := db.GetApp(ctx, pkg)
	if err != nil {
		return nil, fmt.Errorf("loading package %s: %w", pkg, err)
	}

	releases, err := db.AllReleases(ctx, pkg)
	if err != nil {
		return nil, fmt.Errorf("loading releases for %s: %w", pkg, err)
	}

	deltas, err := db.GetDeltaRecords(ctx, pkg)
	if err != nil {
		return nil, fmt.Errorf("loading deltas for %s: %w", pkg, err)
	}
	deltasByTarget := make(map[apkid.VersionCode][]DeltaInfo)
	for _, d := range deltas {
		deltasByTarget[d.Target] = append(deltasByTarget[d.Target], DeltaInfo{
			BaseVersionCode: d.Base.Int64(),
			SHA256:          d.SHA256.String(),
		})
	}

	meta := &PackageMetadata{
		Package:    pkg.String(),
		Label:      app.Label,
		LastUpdate: int64(app.LastUpdate),
		HasIcon:    len(app.Icon) > 0,
	}
	if app.Group != nil {
		meta.Group = app.Group.String()
	}

	for _, r := range releases {
		ri := ReleaseInfo{
			VersionCode: r.VersionCode.Int64(),
			VersionName: r.VersionName,
			MinSDK:      r.MinSDK,
			Timestamp:   int64(r.Timestamp),
			ApkSHA256:   r.ApkSHA256.String(),
			Deltas:      deltasByTarget[r.VersionCode],
		}
		if r.V4SHA256 != nil {
			ri.V4SHA256 = r.V4SHA256.String()
		}
		if r.ReleaseNotes != nil {
			ri.ReleaseNotes = *r.ReleaseNotes
		}
		meta.Releases = append(meta.Releases, ri)
	}
	sortReleasesDescending(meta.Releases)

	return meta, nil
}
