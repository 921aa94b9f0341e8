// Package validate is the Dependency & Chain Validator (spec §4.E): it
// enforces APK admissibility before any write — signer-certificate chain
// continuity across versions, static/dynamic library and package
// dependency satisfaction, and debuggable rejection.
package validate

import (
	"fmt"
	"sort"

	"github.com/andrel/aaus/internal/aauserr"
	"github.com/andrel/aaus/internal/apkid"
	"github.com/andrel/aaus/internal/apkinfo"
)

// Candidate is one APK available to satisfy a dependency: either already
// committed to the repository or present in the same insertion batch.
type Candidate struct {
	Package     apkid.PackageName
	VersionCode apkid.VersionCode
	Certs       apkid.CertDigestSet
}

// Universe is the combined view the validator checks dependencies against:
// the repo's existing releases plus every APK in the current batch.
type Universe struct {
	Candidates []Candidate
}

// Warning is a non-fatal validation finding (spec §4.E: missing optional
// uses-library, or unsatisfied advisory uses-package).
type Warning struct {
	Descriptor *apkinfo.Descriptor
	Message    string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s@%s: %s", w.Descriptor.Package, w.Descriptor.VersionCode, w.Message)
}

// Result accumulates every error and warning found across a batch; errors
// are non-empty iff insertion must abort (spec §4.E: "Errors accumulate
// and are all reported; if the final count is > 0, insertion aborts before
// any write.").
type Result struct {
	Errors   []error
	Warnings []Warning
}

func (r *Result) addError(err error) { r.Errors = append(r.Errors, err) }
func (r *Result) addWarning(d *apkinfo.Descriptor, msg string) {
	r.Warnings = append(r.Warnings, Warning{Descriptor: d, Message: msg})
}

// OK reports whether the batch may proceed to insertion.
func (r *Result) OK() bool { return len(r.Errors) == 0 }

// ValidateBatch runs both checks over every descriptor in the batch against
// universe, returning an accumulated Result.
func ValidateBatch(batch []*apkinfo.Descriptor, universe Universe) *Result {
	result := &Result{}

	for _, d := range batch {
		if d.Debuggable {
			result.addError(aauserr.New(aauserr.InsertFailed, "validate",
				fmt.Errorf("%s@%s is debuggable", d.Package, d.VersionCode)))
		}
	}

	checkDependencies(batch, universe, result)

	return result
}

// ValidateChain runs the signer chain-continuity check across an ascending-
// by-version release history (spec §4.E). The history should include both
// on-disk releases and any batch releases for the same package, already
// merged and sorted ascending.
func ValidateChain(pkg apkid.PackageName, history []apkid.CertDigestSet) error {
	for i := 1; i < len(history); i++ {
		if !history[i-1].SubsetOf(history[i]) {
			return aauserr.New(aauserr.ApkSigningCertMismatch, "validate",
				fmt.Errorf("%s: signer certificates at release %d are not a subset of release %d's", pkg, i-1, i))
		}
	}
	return nil
}

func checkDependencies(batch []*apkinfo.Descriptor, universe Universe, result *Result) {
	for _, d := range batch {
		for _, lib := range d.UsesLibrary {
			if !hasAnyRelease(universe, d.Package, lib.Name) {
				if lib.Required {
					result.addError(aauserr.New(aauserr.InsertFailed, "validate",
						fmt.Errorf("%s@%s requires library %s, not found", d.Package, d.VersionCode, lib.Name)))
				} else {
					result.addWarning(d, fmt.Sprintf("optional library %s not found", lib.Name))
				}
			}
		}

		for _, lib := range d.UsesStaticLibrary {
			if !hasExactRelease(universe, lib.Name, lib.Version, lib.Certs) {
				result.addError(aauserr.New(aauserr.InsertFailed, "validate",
					fmt.Errorf("%s@%s requires static library %s@%d with matching certs, not found",
						d.Package, d.VersionCode, lib.Name, lib.Version)))
			}
		}

		for _, dep := range d.UsesPackage {
			if !hasSatisfyingPackage(universe, dep) {
				result.addWarning(d, fmt.Sprintf("package dependency %s not satisfied", dep.Name))
			}
		}
	}
}

func hasAnyRelease(u Universe, pkg apkid.PackageName, name string) bool {
	want, err := apkid.NewPackageName(name)
	if err != nil {
		return false
	}
	for _, c := range u.Candidates {
		if c.Package == want {
			_ = pkg
			return true
		}
	}
	return false
}

func hasExactRelease(u Universe, name string, version int64, certs apkid.CertDigestSet) bool {
	want, err := apkid.NewPackageName(name)
	if err != nil {
		return false
	}
	for _, c := range u.Candidates {
		if c.Package == want && c.VersionCode.Int64() == version && c.Certs.Equal(certs) {
			return true
		}
	}
	return false
}

func hasSatisfyingPackage(u Universe, dep apkinfo.PackageDependency) bool {
	want, err := apkid.NewPackageName(dep.Name)
	if err != nil {
		return false
	}
	for _, c := range u.Candidates {
		if c.Package != want {
			continue
		}
		if dep.Version > 0 && c.VersionCode.Int64() < dep.Version {
			continue
		}
		if len(dep.Certs) > 0 && !c.Certs.Equal(dep.Certs) {
			continue
		}
		return true
	}
	return false
}

// SortedCertHistory extracts the ascending-by-version certificate-set
// history for pkg from candidates, used to build ValidateChain's input.
func SortedCertHistory(pkg apkid.PackageName, candidates []Candidate) []apkid.CertDigestSet {
	var matching []Candidate
	for _, c := range candidates {
		if c.Package == pkg {
			matching = append(matching, c)
		}
	}
	sort.Slice(matching, func(i, j int) bool { return matching[i].VersionCode < matching[j].VersionCode })
	out := make([]apkid.CertDigestSet, len(matching))
	for i, c := range matching {
		out[i] = c.Certs
	}
	return out
}
