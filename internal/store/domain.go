package store

import (
	"github.com/andrel/aaus/internal/apkid"
	"github.com/andrel/aaus/internal/apkinfo"
)

// App is a Package row (spec §3).
type App struct {
	Name       apkid.PackageName
	Label      string
	Group      *apkid.GroupName
	LastUpdate apkid.Timestamp
	Icon       []byte
}

// Release is one (package, version) row together with its embedded
// dependency declarations and signer-certificate set (spec §3).
type Release struct {
	Package      apkid.PackageName
	VersionCode  apkid.VersionCode
	VersionName  string
	MinSDK       int32
	Timestamp    apkid.Timestamp
	ApkSHA256    apkid.Sha256
	V4SHA256     *apkid.Sha256
	ReleaseNotes *string
	Certs        apkid.CertDigestSet

	UsesLibrary       []apkinfo.LibraryDependency
	UsesStaticLibrary []apkinfo.StaticLibraryDependency
	UsesPackage       []apkinfo.PackageDependency
}

// DeltaRecord is a (package, base, target) row; it exists only when the
// corresponding delta file exists on disk (spec §3).
type DeltaRecord struct {
	Package apkid.PackageName
	Base    apkid.VersionCode
	Target  apkid.VersionCode
	SHA256  apkid.Sha256
}

// ApkInsert bundles a parsed descriptor, the source file it was parsed
// from, and optional release notes, for a single call to UpsertApks.
type ApkInsert struct {
	Descriptor   *apkinfo.Descriptor
	SourcePath   string
	ReleaseNotes *string
}
