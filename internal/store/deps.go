package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/andrel/aaus/internal/apkid"
	"github.com/andrel/aaus/internal/apkinfo"
)

type dependencySet struct {
	usesLibrary       []apkinfo.LibraryDependency
	usesStaticLibrary []apkinfo.StaticLibraryDependency
	usesPackage       []apkinfo.PackageDependency
}

// loadDependencies reads back the three dependency-kind tables for one
// release, rehydrating the value types the parser produced at insert time.
func loadDependencies(ctx context.Context, q sqlx.QueryerContext, pkg string, versionCode int64) (*dependencySet, error) {
	out := &dependencySet{}

	var libRows []struct {
		Name     string `db:"name"`
		Required bool   `db:"required"`
	}
	if err := sqlx.SelectContext(ctx, q, &libRows, `SELECT name, required FROM uses_library WHERE package = ? AND version_code = ?`, pkg, versionCode); err != nil {
		return nil, fmt.Errorf("loading uses-library for %s@%d: %w", pkg, versionCode, err)
	}
	for _, r := range libRows {
		out.usesLibrary = append(out.usesLibrary, apkinfo.LibraryDependency{Name: r.Name, Required: r.Required})
	}

	var staticRows []struct {
		ID      int64  `db:"id"`
		Name    string `db:"name"`
		Version int64  `db:"lib_version"`
	}
	if err := sqlx.SelectContext(ctx, q, &staticRows, `SELECT id, name, lib_version FROM uses_static_library WHERE package = ? AND version_code = ?`, pkg, versionCode); err != nil {
		return nil, fmt.Errorf("loading uses-static-library for %s@%d: %w", pkg, versionCode, err)
	}
	for _, r := range staticRows {
		certs, err := loadCertSet(ctx, q, "uses_static_library_certs", "uses_static_library_id", r.ID)
		if err != nil {
			return nil, err
		}
		out.usesStaticLibrary = append(out.usesStaticLibrary, apkinfo.StaticLibraryDependency{
			Name: r.Name, Version: r.Version, Certs: certs,
		})
	}

	var pkgRows []struct {
		ID           int64 `db:"id"`
		PackageType  string `db:"package_type"`
		Name         string `db:"name"`
		MinVersion   *int64 `db:"min_version"`
		VersionMajor *int32 `db:"version_major"`
	}
	if err := sqlx.SelectContext(ctx, q, &pkgRows, `SELECT id, package_type, name, min_version, version_major FROM uses_package WHERE package = ? AND version_code = ?`, pkg, versionCode); err != nil {
		return nil, fmt.Errorf("loading uses-package for %s@%d: %w", pkg, versionCode, err)
	}
	for _, r := range pkgRows {
		certs, err := loadCertSet(ctx, q, "uses_package_certs", "uses_package_id", r.ID)
		if err != nil {
			return nil, err
		}
		dep := apkinfo.PackageDependency{PackageType: r.PackageType, Name: r.Name, Certs: certs}
		if r.MinVersion != nil {
			dep.Version = *r.MinVersion
		}
		if r.VersionMajor != nil {
			dep.VersionMajor = *r.VersionMajor
		}
		out.usesPackage = append(out.usesPackage, dep)
	}

	return out, nil
}

func loadCertSet(ctx context.Context, q sqlx.QueryerContext, table, fkColumn string, id int64) (apkid.CertDigestSet, error) {
	var digests []string
	query := fmt.Sprintf(`SELECT cert_digest FROM %s WHERE %s = ?`, table, fkColumn)
	if err := sqlx.SelectContext(ctx, q, &digests, query, id); err != nil {
		return nil, fmt.Errorf("loading cert digests from %s: %w", table, err)
	}
	out := make([]apkid.CertDigest, 0, len(digests))
	for _, d := range digests {
		cd, err := apkid.NewCertDigest(d)
		if err != nil {
			return nil, err
		}
		out = append(out, cd)
	}
	return apkid.NewCertDigestSet(out...), nil
}
