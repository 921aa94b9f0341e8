// Package publish is the Metadata Publisher (spec §4.H): it regenerates
// and signs every externally-visible artifact — per-package metadata,
// bulk metadata, and the index — so readers always see a consistent,
// verifiable snapshot (spec §5, §7 atomicity guarantees).
package publish

import (
	"sort"

	"github.com/andrel/aaus/internal/apkid"
)

// DeltaInfo is one entry in a release's delta array: the base version a
// client can patch from, and the delta file's content hash.
type DeltaInfo struct {
	BaseVersionCode int64  `json:"baseVersionCode"`
	SHA256          string `json:"sha256"`
}

// ReleaseInfo is one version's entry within a package's metadata document.
type ReleaseInfo struct {
	VersionCode  int64       `json:"versionCode"`
	VersionName  string      `json:"versionName"`
	MinSDK       int32       `json:"minSdk"`
	Timestamp    int64       `json:"timestamp"`
	ApkSHA256    string      `json:"apkSha256"`
	V4SHA256     string      `json:"v4Sha256,omitempty"`
	ReleaseNotes string      `json:"releaseNotes,omitempty"`
	Deltas       []DeltaInfo `json:"deltas,omitempty"`
}

// PackageMetadata is the document written to latest-metadata.json for one
// package, and embedded (minus the signature line) into bulk-metadata.json.
type PackageMetadata struct {
	Package          string        `json:"package"`
	Label            string        `json:"label"`
	Group            string        `json:"group,omitempty"`
	LastUpdate       int64         `json:"lastUpdate"`
	HasIcon          bool          `json:"hasIcon"`
	Releases         []ReleaseInfo `json:"releases"`
}

// BulkMetadata is the document written to bulk-metadata.json: every
// package's metadata plus the shared publish timestamp (spec line 171:
// "the concatenated array of all per-package metadata objects plus T").
type BulkMetadata struct {
	Timestamp int64             `json:"timestamp"`
	Packages  []PackageMetadata `json:"packages"`
}

// sortReleasesDescending orders a package's releases by version code,
// newest first, matching spec line 170 ("an array of releases (descending
// by version code)").
func sortReleasesDescending(releases []ReleaseInfo) {
	sort.Slice(releases, func(i, j int) bool { return releases[i].VersionCode > releases[j].VersionCode })
}

// sortPackagesAscending orders bulk metadata and index entries by package
// name, matching the index's documented line format ("<pkg>:<versionCode>"
// in package order, spec line 220).
func sortPackagesAscending(pkgs []apkid.PackageName) {
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i] < pkgs[j] })
}
