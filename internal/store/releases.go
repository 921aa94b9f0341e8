package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/andrel/aaus/internal/apkid"
	"github.com/andrel/aaus/internal/layout"
)

type releaseRow struct {
	Package      string         `db:"package"`
	VersionCode  int64          `db:"version_code"`
	VersionName  string         `db:"version_name"`
	MinSDK       int32          `db:"min_sdk"`
	Timestamp    int64          `db:"release_timestamp"`
	ApkSHA256    string         `db:"apk_sha256"`
	V4SHA256     sql.NullString `db:"v4_sha256"`
	ReleaseNotes sql.NullString `db:"release_notes"`
}

// GetRelease returns the (package, version) Release, or (nil, nil) if
// absent.
func (db *DB) GetRelease(ctx context.Context, pkg apkid.PackageName, version apkid.VersionCode) (*Release, error) {
	return getRelease(ctx, db.sqlx, pkg, version)
}

func getRelease(ctx context.Context, q sqlx.QueryerContext, pkg apkid.PackageName, version apkid.VersionCode) (*Release, error) {
	var row releaseRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT package, version_code, version_name, min_sdk, release_timestamp, apk_sha256, v4_sha256, release_notes
		FROM releases WHERE package = ? AND version_code = ?`, pkg.String(), version.Int64())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting release %s@%s: %w", pkg, version, err)
	}
	return hydrateRelease(ctx, q, row)
}

// GetLatestRelease returns the highest-version-code Release for pkg, or
// (nil, nil) if the package has no releases.
func (db *DB) GetLatestRelease(ctx context.Context, pkg apkid.PackageName) (*Release, error) {
	var row releaseRow
	err := db.sqlx.GetContext(ctx, &row, `SELECT package, version_code, version_name, min_sdk, release_timestamp, apk_sha256, v4_sha256, release_notes
		FROM releases WHERE package = ? ORDER BY version_code DESC LIMIT 1`, pkg.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest release for %s: %w", pkg, err)
	}
	return hydrateRelease(ctx, db.sqlx, row)
}

// AllReleases returns every Release for pkg, descending by version code.
func (db *DB) AllReleases(ctx context.Context, pkg apkid.PackageName) ([]*Release, error) {
	var rows []releaseRow
	if err := db.sqlx.SelectContext(ctx, &rows, `SELECT package, version_code, version_name, min_sdk, release_timestamp, apk_sha256, v4_sha256, release_notes
		FROM releases WHERE package = ? ORDER BY version_code DESC`, pkg.String()); err != nil {
		return nil, fmt.Errorf("listing releases for %s: %w", pkg, err)
	}
	out := make([]*Release, 0, len(rows))
	for _, r := range rows {
		rel, err := hydrateRelease(ctx, db.sqlx, r)
		if err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, nil
}

func hydrateRelease(ctx context.Context, q sqlx.QueryerContext, row releaseRow) (*Release, error) {
	pkg, err := apkid.NewPackageName(row.Package)
	if err != nil {
		return nil, err
	}
	sha, err := apkid.NewSha256Base64(row.ApkSHA256)
	if err != nil {
		return nil, fmt.Errorf("corrupt apk_sha256 for %s@%d: %w", row.Package, row.VersionCode, err)
	}
	rel := &Release{
		Package:     pkg,
		VersionCode: apkid.VersionCode(row.VersionCode),
		VersionName: row.VersionName,
		MinSDK:      row.MinSDK,
		Timestamp:   apkid.Timestamp(row.Timestamp),
		ApkSHA256:   sha,
	}
	if row.V4SHA256.Valid {
		v4, err := apkid.NewSha256Base64(row.V4SHA256.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt v4_sha256 for %s@%d: %w", row.Package, row.VersionCode, err)
		}
		rel.V4SHA256 = &v4
	}
	if row.ReleaseNotes.Valid {
		notes := row.ReleaseNotes.String
		rel.ReleaseNotes = &notes
	}

	var certStrs []string
	if err := sqlx.SelectContext(ctx, q, &certStrs, `SELECT cert_digest FROM release_certs WHERE package = ? AND version_code = ?`, row.Package, row.VersionCode); err != nil {
		return nil, fmt.Errorf("loading certs for %s@%d: %w", row.Package, row.VersionCode, err)
	}
	certs := make([]apkid.CertDigest, 0, len(certStrs))
	for _, c := range certStrs {
		d, err := apkid.NewCertDigest(c)
		if err != nil {
			return nil, err
		}
		certs = append(certs, d)
	}
	rel.Certs = apkid.NewCertDigestSet(certs...)

	deps, err := loadDependencies(ctx, q, row.Package, row.VersionCode)
	if err != nil {
		return nil, err
	}
	rel.UsesLibrary = deps.usesLibrary
	rel.UsesStaticLibrary = deps.usesStaticLibrary
	rel.UsesPackage = deps.usesPackage

	return rel, nil
}

// UpsertApks inserts every ApkInsert for pkg (ascending by version code,
// re-sorted defensively) as a Release row, copies each APK's bytes into
// its canonical path, and updates the Package row's label/last-update/icon
// from the highest-version insert (spec §4.B).
func UpsertApks(tx *Tx, lay *layout.Layout, pkg apkid.PackageName, inserts []ApkInsert, ts apkid.Timestamp) error {
	if len(inserts) == 0 {
		return nil
	}
	sorted := append([]ApkInsert(nil), inserts...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Descriptor.VersionCode < sorted[j].Descriptor.VersionCode
	})

	for _, ins := range sorted {
		if err := insertReleaseRow(tx, pkg, ins, ts); err != nil {
			return err
		}
		dest := lay.ApkFile(pkg, ins.Descriptor.VersionCode)
		if err := copyFile(ins.SourcePath, dest); err != nil {
			return fmt.Errorf("copying %s to %s: %w", ins.SourcePath, dest, err)
		}
	}

	highest := sorted[len(sorted)-1].Descriptor
	if _, err := tx.tx.Exec(`UPDATE packages SET label = ?, last_update = ?, icon = ? WHERE name = ?`,
		highest.Label, int64(ts), highest.Icon, pkg.String()); err != nil {
		return fmt.Errorf("updating package %s: %w", pkg, err)
	}
	return nil
}

// EnsurePackageRow inserts a Package row for pkg if one doesn't already
// exist, leaving label/icon/last_update at their zero values (UpsertApks
// fills them in within the same transaction).
func EnsurePackageRow(tx *Tx, pkg apkid.PackageName) error {
	_, err := tx.tx.Exec(`INSERT OR IGNORE INTO packages (name, label, last_update) VALUES (?, '', 0)`, pkg.String())
	if err != nil {
		return fmt.Errorf("ensuring package row for %s: %w", pkg, err)
	}
	return nil
}

func insertReleaseRow(tx *Tx, pkg apkid.PackageName, ins ApkInsert, ts apkid.Timestamp) error {
	d := ins.Descriptor
	var v4 interface{}
	var notes interface{}
	if ins.ReleaseNotes != nil {
		notes = *ins.ReleaseNotes
	}

	res, err := tx.tx.Exec(`INSERT INTO releases (package, version_code, version_name, min_sdk, release_timestamp, apk_sha256, v4_sha256, release_notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pkg.String(), d.VersionCode.Int64(), d.VersionName, d.MinSDK, int64(ts), d.SHA256.String(), v4, notes)
	if err != nil {
		return fmt.Errorf("inserting release %s@%s: %w", pkg, d.VersionCode, err)
	}
	_ = res

	for cert := range d.SignerCerts {
		if _, err := tx.tx.Exec(`INSERT INTO release_certs (package, version_code, cert_digest) VALUES (?, ?, ?)`,
			pkg.String(), d.VersionCode.Int64(), cert.String()); err != nil {
			return fmt.Errorf("inserting cert for %s@%s: %w", pkg, d.VersionCode, err)
		}
	}

	for _, lib := range d.UsesLibrary {
		if _, err := tx.tx.Exec(`INSERT INTO uses_library (package, version_code, name, required) VALUES (?, ?, ?, ?)`,
			pkg.String(), d.VersionCode.Int64(), lib.Name, lib.Required); err != nil {
			return fmt.Errorf("inserting uses-library for %s@%s: %w", pkg, d.VersionCode, err)
		}
	}

	for _, lib := range d.UsesStaticLibrary {
		res, err := tx.tx.Exec(`INSERT INTO uses_static_library (package, version_code, name, lib_version) VALUES (?, ?, ?, ?)`,
			pkg.String(), d.VersionCode.Int64(), lib.Name, lib.Version)
		if err != nil {
			return fmt.Errorf("inserting uses-static-library for %s@%s: %w", pkg, d.VersionCode, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for cert := range lib.Certs {
			if _, err := tx.tx.Exec(`INSERT INTO uses_static_library_certs (uses_static_library_id, cert_digest) VALUES (?, ?)`, id, cert.String()); err != nil {
				return fmt.Errorf("inserting uses-static-library cert for %s@%s: %w", pkg, d.VersionCode, err)
			}
		}
	}

	for _, dep := range d.UsesPackage {
		res, err := tx.tx.Exec(`INSERT INTO uses_package (package, version_code, package_type, name, min_version, version_major) VALUES (?, ?, ?, ?, ?, ?)`,
			pkg.String(), d.VersionCode.Int64(), dep.PackageType, dep.Name, dep.Version, dep.VersionMajor)
		if err != nil {
			return fmt.Errorf("inserting uses-package for %s@%s: %w", pkg, d.VersionCode, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for cert := range dep.Certs {
			if _, err := tx.tx.Exec(`INSERT INTO uses_package_certs (uses_package_id, cert_digest) VALUES (?, ?)`, id, cert.String()); err != nil {
				return fmt.Errorf("inserting uses-package cert for %s@%s: %w", pkg, d.VersionCode, err)
			}
		}
	}

	return nil
}

// UpdateReleaseNotes overwrites the release-notes text for (pkg, version).
func UpdateReleaseNotes(tx *Tx, pkg apkid.PackageName, version apkid.VersionCode, text *string, ts apkid.Timestamp) error {
	var notes interface{}
	if text != nil {
		notes = *text
	}
	res, err := tx.tx.Exec(`UPDATE releases SET release_notes = ? WHERE package = ? AND version_code = ?`, notes, pkg.String(), version.Int64())
	if err != nil {
		return fmt.Errorf("updating release notes for %s@%s: %w", pkg, version, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no release %s@%s to update", pkg, version)
	}
	if _, err := tx.tx.Exec(`UPDATE packages SET last_update = ? WHERE name = ?`, int64(ts), pkg.String()); err != nil {
		return fmt.Errorf("touching package %s: %w", pkg, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
