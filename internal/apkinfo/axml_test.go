package apkinfo

import "testing"

func TestAttrBool(t *testing.T) {
	attrs := []axmlAttr{
		{Name: "debuggable", DataType: attrTypeIntBool, Data: 1},
		{Name: "allowBackup", DataType: attrTypeIntBool, Data: 0},
	}
	if !attrBool(attrs, "debuggable", false) {
		t.Error("debuggable should be true")
	}
	if attrBool(attrs, "allowBackup", true) {
		t.Error("allowBackup should be false")
	}
	if !attrBool(attrs, "missing", true) {
		t.Error("missing attribute should fall back to default")
	}
}

func TestAttrInt32(t *testing.T) {
	attrs := []axmlAttr{
		{Name: "versionCodeMajor", DataType: attrTypeIntDec, Data: 3},
		{Name: "label", DataType: attrTypeString, Data: 0},
	}
	v, ok := attrInt32(attrs, "versionCodeMajor")
	if !ok || v != 3 {
		t.Errorf("versionCodeMajor = %d, %v; want 3, true", v, ok)
	}
	if _, ok := attrInt32(attrs, "label"); ok {
		t.Error("string attribute should not resolve as int32")
	}
	if _, ok := attrInt32(attrs, "missing"); ok {
		t.Error("missing attribute should report ok=false")
	}
}

func TestAttrValue(t *testing.T) {
	attrs := []axmlAttr{
		{Name: "name", RawValue: "com.example.lib", DataType: attrTypeString},
	}
	v, ok := attrValue(attrs, "name")
	if !ok || v != "com.example.lib" {
		t.Errorf("name = %q, %v; want com.example.lib, true", v, ok)
	}
	if _, ok := attrValue(attrs, "missing"); ok {
		t.Error("missing attribute should report ok=false")
	}
}

func TestParseCertDigestAttr(t *testing.T) {
	attrs := []axmlAttr{
		{Name: "certDigest", RawValue: "AB:CD:EF", DataType: attrTypeString},
	}
	got := parseCertDigestAttr(attrs)
	if got != "ABCDEF" {
		t.Errorf("parseCertDigestAttr = %q, want ABCDEF", got)
	}
}
