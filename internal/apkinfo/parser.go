// Package apkinfo is the APK Parser Facade (spec §4.C): given an APK file
// it produces a validated descriptor (package, version code, label,
// min-SDK, debuggable, signer certificates, declared library/package
// dependencies), built atop the shogo82148/androidbinary manifest reader
// and avast/apkverifier signature verifier.
package apkinfo

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/avast/apkverifier"
	"github.com/shogo82148/androidbinary"
	"github.com/shogo82148/androidbinary/apk"

	"github.com/andrel/aaus/internal/apkid"
)

// maxZipFileSize bounds how much of any single archive member is read into
// memory while scanning an APK.
const maxZipFileSize = 650 * 1024 * 1024

// LibraryDependency is a declared <uses-library> child of <application>
// (spec §6.1).
type LibraryDependency struct {
	Name     string
	Required bool
}

// StaticLibraryDependency is a declared <uses-static-library> child, whose
// satisfaction requires an exact match of the full certificate-digest set
// (including any nested additional-certificate entries).
type StaticLibraryDependency struct {
	Name    string
	Version int64
	Certs   apkid.CertDigestSet
}

// PackageDependency is a declared <uses-package> child (spec §6.1), whose
// satisfaction is advisory only (spec §4.E: warning, not a hard failure).
type PackageDependency struct {
	PackageType  string
	Name         string
	Version      int64
	VersionMajor int32
	Certs        apkid.CertDigestSet
}

// Descriptor is the validated result of parsing one APK file.
type Descriptor struct {
	Package     apkid.PackageName
	VersionCode apkid.VersionCode
	VersionName string
	MinSDK      int32
	Debuggable  bool
	Label       string
	Icon        []byte // PNG bytes, nil if none found

	SignerCerts apkid.CertDigestSet

	UsesLibrary       []LibraryDependency
	UsesStaticLibrary []StaticLibraryDependency
	UsesPackage       []PackageDependency

	FilePath string
	FileSize int64
	SHA256   apkid.Sha256
}

// Parse opens the APK at path and extracts a full Descriptor. It returns an
// error for any APK that can't be opened, manifest-parsed, or signature-
// verified; debuggable rejection and dependency satisfaction are left to
// the validator (spec §4.E), not enforced here.
func Parse(path string) (*Descriptor, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	sum, err := hashFile(path)
	if err != nil {
		return nil, fmt.Errorf("hashing %s: %w", path, err)
	}

	pkg, err := apk.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening APK %s: %w", path, err)
	}
	defer pkg.Close()

	manifest := pkg.Manifest()

	pkgName, err := apkid.NewPackageName(manifest.Package.MustString())
	if err != nil {
		return nil, fmt.Errorf("invalid package name in %s: %w", path, err)
	}

	versionCode := apkid.VersionCode(int64(manifest.VersionCode.MustInt32()))

	manifestData, resTable, xmlFile, err := readManifestChunks(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest chunks of %s: %w", path, err)
	}

	tree := parseManifestTree(xmlFile, manifestData)

	if major, ok := tree.versionCodeMajor(); ok {
		versionCode = apkid.PackVersionCode(major, int32(manifest.VersionCode.MustInt32()))
	}

	certs, err := extractSignerCerts(path)
	if err != nil {
		return nil, fmt.Errorf("verifying signature of %s: %w", path, err)
	}

	desc := &Descriptor{
		Package:           pkgName,
		VersionCode:       versionCode,
		VersionName:       manifest.VersionName.MustString(),
		MinSDK:            manifest.SDK.Min.MustInt32(),
		Debuggable:        tree.debuggable,
		Label:             extractLabel(pkg, resTable, xmlFile, manifestData),
		SignerCerts:       certs,
		UsesLibrary:       tree.usesLibrary,
		UsesStaticLibrary: tree.usesStaticLibrary,
		UsesPackage:       tree.usesPackage,
		FilePath:          path,
		FileSize:          fi.Size(),
		SHA256:            sum,
	}

	if icon, err := extractIcon(pkg, path); err == nil {
		desc.Icon = icon
	}

	return desc, nil
}

// manifestTree is the result of walking <application>'s immediate
// dependency-declaration children plus its debuggable attribute.
type manifestTree struct {
	debuggable        bool
	versionCodeMajorV int32
	haveMajor         bool

	usesLibrary       []LibraryDependency
	usesStaticLibrary []StaticLibraryDependency
	usesPackage       []PackageDependency
}

func (t *manifestTree) versionCodeMajor() (int32, bool) {
	return t.versionCodeMajorV, t.haveMajor
}

// parseManifestTree walks the AXML event stream, collecting <application>'s
// debuggable attribute and its uses-library/uses-static-library/uses-package
// children (spec §6.1), including uses-static-library/uses-package's nested
// additional-certificate children.
func parseManifestTree(xmlFile *androidbinary.XMLFile, data []byte) *manifestTree {
	t := &manifestTree{}

	var stack []string
	var curStatic *StaticLibraryDependency
	var curPackage *PackageDependency

	onStart := func(e axmlElement) {
		parent := ""
		if len(stack) > 0 {
			parent = stack[len(stack)-1]
		}
		stack = append(stack, e.Name)

		switch e.Name {
		case "manifest":
			if v, ok := attrInt32(e.Attrs, "versionCodeMajor"); ok {
				t.versionCodeMajorV = v
				t.haveMajor = true
			}
		case "application":
			t.debuggable = attrBool(e.Attrs, "debuggable", false)
		case "uses-library":
			if parent == "application" {
				name, _ := attrValue(e.Attrs, "name")
				t.usesLibrary = append(t.usesLibrary, LibraryDependency{
					Name:     name,
					Required: attrBool(e.Attrs, "required", true),
				})
			}
		case "uses-static-library":
			if parent == "application" {
				name, _ := attrValue(e.Attrs, "name")
				version, _ := attrInt32(e.Attrs, "version")
				digest := parseCertDigestAttr(e.Attrs)
				set := apkid.NewCertDigestSet()
				if digest != "" {
					if d, err := apkid.NewCertDigest(digest); err == nil {
						set = apkid.NewCertDigestSet(d)
					}
				}
				dep := StaticLibraryDependency{Name: name, Version: int64(version), Certs: set}
				t.usesStaticLibrary = append(t.usesStaticLibrary, dep)
				curStatic = &t.usesStaticLibrary[len(t.usesStaticLibrary)-1]
			}
		case "uses-package":
			if parent == "application" {
				name, _ := attrValue(e.Attrs, "name")
				packageType, _ := attrValue(e.Attrs, "packageType")
				version, _ := attrInt32(e.Attrs, "version")
				versionMajor, _ := attrInt32(e.Attrs, "versionMajor")
				digest := parseCertDigestAttr(e.Attrs)
				set := apkid.NewCertDigestSet()
				if digest != "" {
					if d, err := apkid.NewCertDigest(digest); err == nil {
						set = apkid.NewCertDigestSet(d)
					}
				}
				dep := PackageDependency{
					PackageType:  packageType,
					Name:         name,
					Version:      int64(version),
					VersionMajor: versionMajor,
					Certs:        set,
				}
				t.usesPackage = append(t.usesPackage, dep)
				curPackage = &t.usesPackage[len(t.usesPackage)-1]
			}
		case "additional-certificate":
			digest := parseCertDigestAttr(e.Attrs)
			if digest == "" {
				return
			}
			d, err := apkid.NewCertDigest(digest)
			if err != nil {
				return
			}
			switch parent {
			case "uses-static-library":
				if curStatic != nil {
					curStatic.Certs = addCertDigest(curStatic.Certs, d)
				}
			case "uses-package":
				if curPackage != nil {
					curPackage.Certs = addCertDigest(curPackage.Certs, d)
				}
			}
		}
	}

	onEnd := func(name string) {
		if len(stack) > 0 && stack[len(stack)-1] == name {
			stack = stack[:len(stack)-1]
		}
		switch name {
		case "uses-static-library":
			curStatic = nil
		case "uses-package":
			curPackage = nil
		}
	}

	walkManifest(xmlFile, data, onStart, onEnd)
	return t
}

func addCertDigest(set apkid.CertDigestSet, d apkid.CertDigest) apkid.CertDigestSet {
	existing := set.Slice()
	existing = append(existing, d)
	return apkid.NewCertDigestSet(existing...)
}

// parseCertDigestAttr reads the certDigest attribute and strips ':'
// separators per spec §6.1.
func parseCertDigestAttr(attrs []axmlAttr) string {
	v, _ := attrValue(attrs, "certDigest")
	return strings.ReplaceAll(v, ":", "")
}

// readManifestChunks opens the zip, extracts resources.arsc and
// AndroidManifest.xml, and parses both into androidbinary structures.
func readManifestChunks(path string) ([]byte, *androidbinary.TableFile, *androidbinary.XMLFile, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, nil, err
	}
	defer r.Close()

	resData, err := readZipMember(r, "resources.arsc")
	if err != nil {
		return nil, nil, nil, err
	}
	manifestData, err := readZipMember(r, "AndroidManifest.xml")
	if err != nil {
		return nil, nil, nil, err
	}

	var table *androidbinary.TableFile
	if resData != nil {
		table, _ = androidbinary.NewTableFile(bytes.NewReader(resData))
	}
	xmlFile, err := androidbinary.NewXMLFile(bytes.NewReader(manifestData))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("parsing AndroidManifest.xml: %w", err)
	}
	return manifestData, table, xmlFile, nil
}

func readZipMember(r *zip.ReadCloser, name string) ([]byte, error) {
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		if f.UncompressedSize64 > maxZipFileSize {
			return nil, fmt.Errorf("%s too large", name)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, int64(maxZipFileSize)))
	}
	return nil, nil
}

// extractLabel resolves the application label, following a resource
// reference through the table when the manifest only declares a reference
// rather than an inline string (androidbinary's high-level Label() doesn't
// chase nested references).
func extractLabel(pkg *apk.Apk, table *androidbinary.TableFile, xmlFile *androidbinary.XMLFile, manifestData []byte) string {
	if label, err := pkg.Label(nil); err == nil && label != "" {
		return label
	}
	if table == nil {
		return ""
	}
	resID := findApplicationAttrRef(xmlFile, manifestData, "label")
	if resID == 0 {
		return ""
	}
	return resolveStringResource(table, androidbinary.ResID(resID), nil, 10)
}

// findApplicationAttrRef returns the resource-reference value of the named
// attribute on <application>, or 0 if absent or not a reference.
func findApplicationAttrRef(xmlFile *androidbinary.XMLFile, data []byte, attrName string) uint32 {
	var found uint32
	onStart := func(e axmlElement) {
		if e.Name != "application" || found != 0 {
			return
		}
		for _, a := range e.Attrs {
			if a.Name == attrName && a.DataType == attrTypeReference && a.Data != 0 {
				found = a.Data
				return
			}
		}
	}
	walkManifest(xmlFile, data, onStart, nil)
	return found
}

// resolveStringResource resolves a resource ID to a string, following
// references up to maxDepth hops.
func resolveStringResource(table *androidbinary.TableFile, id androidbinary.ResID, config *androidbinary.ResTableConfig, maxDepth int) string {
	if maxDepth <= 0 {
		return ""
	}
	val, err := table.GetResource(id, config)
	if err != nil {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	case uint32:
		if v&0xFF000000 == 0x7F000000 {
			return resolveStringResource(table, androidbinary.ResID(v), config, maxDepth-1)
		}
		return ""
	default:
		return ""
	}
}

// extractSignerCerts returns the SHA-256 digests of every signer's leaf
// certificate (spec §3: "the set of signer-certificate SHA-256
// fingerprints"), not just the single best-scheme certificate.
func extractSignerCerts(path string) (apkid.CertDigestSet, error) {
	res, err := apkverifier.Verify(path, nil)
	if err != nil {
		return nil, fmt.Errorf("APK verification failed: %w", err)
	}
	if len(res.SignerCerts) == 0 {
		return nil, fmt.Errorf("no signer certificates found")
	}

	var digests []apkid.CertDigest
	for _, chain := range res.SignerCerts {
		if len(chain) == 0 {
			continue
		}
		leaf := chain[0]
		d, err := apkid.CertDigestFromRaw(sha256Sum(leaf.Raw))
		if err != nil {
			continue
		}
		digests = append(digests, d)
	}
	if len(digests) == 0 {
		return nil, fmt.Errorf("no usable signer certificates found")
	}
	return apkid.NewCertDigestSet(digests...), nil
}

func sha256Sum(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// extractIcon picks the highest-resolution launcher icon available,
// preferring androidbinary's density-aware decoder and falling back to a
// manual zip scan for adaptive-icon layouts it can't resolve.
func extractIcon(pkg *apk.Apk, path string) ([]byte, error) {
	densities := []uint16{640, 480, 320, 240, 160}

	var best image.Image
	var bestWidth int
	for _, density := range densities {
		config := &androidbinary.ResTableConfig{Density: density}
		icon, err := pkg.Icon(config)
		if err != nil || icon == nil {
			continue
		}
		if w := icon.Bounds().Dx(); w > bestWidth {
			best, bestWidth = icon, w
		}
	}
	if nilIcon, err := pkg.Icon(nil); err == nil && nilIcon != nil {
		if w := nilIcon.Bounds().Dx(); w > bestWidth {
			best = nilIcon
		}
	}
	if best != nil {
		return encodePNG(best)
	}
	return extractIconManually(path)
}

func extractIconManually(path string) ([]byte, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	files := make(map[string]*zip.File)
	for _, f := range r.File {
		files[f.Name] = f
	}

	candidates := []string{
		"res/mipmap-xxxhdpi-v4/ic_launcher.png",
		"res/mipmap-xxhdpi-v4/ic_launcher.png",
		"res/mipmap-xhdpi-v4/ic_launcher.png",
		"res/mipmap-hdpi-v4/ic_launcher.png",
		"res/mipmap-mdpi-v4/ic_launcher.png",
		"res/drawable-xxxhdpi-v4/ic_launcher.png",
		"res/drawable-xxhdpi-v4/ic_launcher.png",
		"res/drawable-xhdpi-v4/ic_launcher.png",
		"res/drawable-hdpi-v4/ic_launcher.png",
		"res/drawable-mdpi-v4/ic_launcher.png",
		"res/mipmap-xxxhdpi-v4/ic_launcher_foreground.png",
		"res/mipmap-xxhdpi-v4/ic_launcher_foreground.png",
		"res/mipmap-xhdpi-v4/ic_launcher_foreground.png",
		"res/mipmap-hdpi-v4/ic_launcher_foreground.png",
	}
	for _, c := range candidates {
		if f, ok := files[c]; ok {
			return readZipFile(f)
		}
	}

	var bestIcon *zip.File
	var bestSize uint64
	for _, f := range r.File {
		name := baseName(f.Name)
		if strings.HasPrefix(f.Name, "res/") &&
			(strings.Contains(name, "ic_launcher") || strings.Contains(name, "launcher") ||
				(strings.Contains(name, "icon") && !strings.Contains(name, "notification"))) &&
			strings.HasSuffix(name, ".png") && !strings.HasSuffix(name, ".9.png") {
			if f.UncompressedSize64 > bestSize {
				bestIcon, bestSize = f, f.UncompressedSize64
			}
		}
	}
	if bestIcon != nil {
		return readZipFile(bestIcon)
	}
	return nil, fmt.Errorf("no icon found in %s", path)
}

func baseName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

func readZipFile(f *zip.File) ([]byte, error) {
	if f.UncompressedSize64 > maxZipFileSize {
		return nil, fmt.Errorf("file %s too large: %d bytes", f.Name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, int64(maxZipFileSize)))
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func hashFile(path string) (apkid.Sha256, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return apkid.Sha256FromRaw(h.Sum(nil))
}
