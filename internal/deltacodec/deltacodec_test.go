package deltacodec

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestGenerateApplyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.apk")
	newPath := filepath.Join(dir, "new.apk")
	deltaPath := filepath.Join(dir, "delta.gz")
	outPath := filepath.Join(dir, "out.apk")

	oldData := bytes.Repeat([]byte("aaus-repo-old-content-"), 200)
	newData := append(append([]byte{}, oldData...), []byte("-plus-some-new-bytes-appended-at-the-end")...)

	if err := os.WriteFile(oldPath, oldData, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(newPath, newData, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Generate(oldPath, newPath, deltaPath, true); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := Apply(oldPath, deltaPath, outPath, true); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, newData) {
		t.Errorf("round trip produced %d bytes, want %d matching original", len(got), len(newData))
	}
}

func TestEstimateTempSpace(t *testing.T) {
	got := EstimateTempSpace(100, 300)
	want := int64(100 + 300 + 300)
	if got != want {
		t.Errorf("EstimateTempSpace(100, 300) = %d, want %d", got, want)
	}
}
