package validate

import (
	"testing"

	"github.com/andrel/aaus/internal/aauserr"
	"github.com/andrel/aaus/internal/apkid"
	"github.com/andrel/aaus/internal/apkinfo"
)

func mustPkg(t *testing.T, s string) apkid.PackageName {
	t.Helper()
	p, err := apkid.NewPackageName(s)
	if err != nil {
		t.Fatalf("NewPackageName(%q): %v", s, err)
	}
	return p
}

func mustCert(t *testing.T, hexByte string) apkid.CertDigest {
	t.Helper()
	full := ""
	for i := 0; i < 32; i++ {
		full += hexByte
	}
	d, err := apkid.NewCertDigest(full)
	if err != nil {
		t.Fatalf("NewCertDigest: %v", err)
	}
	return d
}

func TestValidateBatchRejectsDebuggable(t *testing.T) {
	pkg := mustPkg(t, "com.example.app")
	d := &apkinfo.Descriptor{Package: pkg, VersionCode: 1, Debuggable: true}

	result := ValidateBatch([]*apkinfo.Descriptor{d}, Universe{})
	if result.OK() {
		t.Fatal("expected debuggable APK to fail validation")
	}
	if code, ok := aauserr.CodeOf(result.Errors[0]); !ok || code != aauserr.InsertFailed {
		t.Errorf("error code = %v, ok=%v; want InsertFailed", code, ok)
	}
}

func TestValidateBatchRequiredLibraryMissing(t *testing.T) {
	pkg := mustPkg(t, "com.example.app")
	d := &apkinfo.Descriptor{
		Package: pkg, VersionCode: 1,
		UsesLibrary: []apkinfo.LibraryDependency{{Name: "org.missing.lib", Required: true}},
	}
	result := ValidateBatch([]*apkinfo.Descriptor{d}, Universe{})
	if result.OK() {
		t.Fatal("expected missing required library to fail validation")
	}
}

func TestValidateBatchOptionalLibraryMissingIsWarning(t *testing.T) {
	pkg := mustPkg(t, "com.example.app")
	d := &apkinfo.Descriptor{
		Package: pkg, VersionCode: 1,
		UsesLibrary: []apkinfo.LibraryDependency{{Name: "org.missing.lib", Required: false}},
	}
	result := ValidateBatch([]*apkinfo.Descriptor{d}, Universe{})
	if !result.OK() {
		t.Fatalf("optional missing library should not fail validation: %v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("expected 1 warning, got %d", len(result.Warnings))
	}
}

func TestValidateBatchStaticLibrarySatisfiedCrossBatch(t *testing.T) {
	appPkg := mustPkg(t, "app.pkg")
	libPkg := mustPkg(t, "lib.pkg")
	cert := mustCert(t, "ab")

	app := &apkinfo.Descriptor{
		Package: appPkg, VersionCode: 1,
		UsesStaticLibrary: []apkinfo.StaticLibraryDependency{
			{Name: "lib.pkg", Version: 10, Certs: apkid.NewCertDigestSet(cert)},
		},
	}
	lib := &apkinfo.Descriptor{Package: libPkg, VersionCode: 10, SignerCerts: apkid.NewCertDigestSet(cert)}

	universe := Universe{Candidates: []Candidate{
		{Package: libPkg, VersionCode: 10, Certs: apkid.NewCertDigestSet(cert)},
	}}

	result := ValidateBatch([]*apkinfo.Descriptor{app, lib}, universe)
	if !result.OK() {
		t.Fatalf("expected satisfied static-library dependency to pass: %v", result.Errors)
	}
}

func TestValidateBatchStaticLibraryCertMismatch(t *testing.T) {
	appPkg := mustPkg(t, "app.pkg")
	certA := mustCert(t, "ab")
	certB := mustCert(t, "cd")

	app := &apkinfo.Descriptor{
		Package: appPkg, VersionCode: 1,
		UsesStaticLibrary: []apkinfo.StaticLibraryDependency{
			{Name: "lib.pkg", Version: 10, Certs: apkid.NewCertDigestSet(certA)},
		},
	}
	universe := Universe{Candidates: []Candidate{
		{Package: mustPkg(t, "lib.pkg"), VersionCode: 10, Certs: apkid.NewCertDigestSet(certB)},
	}}

	result := ValidateBatch([]*apkinfo.Descriptor{app}, universe)
	if result.OK() {
		t.Fatal("expected cert-digest mismatch to fail validation")
	}
}

func TestValidateChainContinuity(t *testing.T) {
	pkg := mustPkg(t, "com.x")
	c1 := mustCert(t, "ab")
	c2 := mustCert(t, "cd")

	ok := []apkid.CertDigestSet{
		apkid.NewCertDigestSet(c1),
		apkid.NewCertDigestSet(c1, c2),
	}
	if err := ValidateChain(pkg, ok); err != nil {
		t.Errorf("expected superset chain to pass: %v", err)
	}

	broken := []apkid.CertDigestSet{
		apkid.NewCertDigestSet(c1),
		apkid.NewCertDigestSet(c2),
	}
	err := ValidateChain(pkg, broken)
	if err == nil {
		t.Fatal("expected disjoint cert sets to fail chain continuity")
	}
	if code, ok := aauserr.CodeOf(err); !ok || code != aauserr.ApkSigningCertMismatch {
		t.Errorf("error code = %v, ok=%v; want ApkSigningCertMismatch", code, ok)
	}
}
