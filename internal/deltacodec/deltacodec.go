// Package deltacodec implements the delta codec contract consumed by the
// generation engine (spec §6.2): generate/apply a binary patch between two
// APKs, gzip-framed, using the bsdiff/bspatch algorithm from
// github.com/kr/binarydist. Output framing uses
// github.com/klauspost/compress/gzip rather than the standard library's
// gzip so the engine shares its compression stack with the release-notes
// markdown renderer's other dependencies.
package deltacodec

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/kr/binarydist"
)

// Generate produces a (by default gzip-framed) binary patch at outputPath
// such that Apply(oldApkPath, outputPath) reproduces newApkPath byte for
// byte.
func Generate(oldApkPath, newApkPath, outputPath string, gzipOutput bool) (err error) {
	oldFile, err := os.Open(oldApkPath)
	if err != nil {
		return fmt.Errorf("opening base APK %s: %w", oldApkPath, err)
	}
	defer oldFile.Close()

	newFile, err := os.Open(newApkPath)
	if err != nil {
		return fmt.Errorf("opening target APK %s: %w", newApkPath, err)
	}
	defer newFile.Close()

	out, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating delta output %s: %w", outputPath, err)
	}
	defer func() {
		closeErr := out.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(outputPath)
		}
	}()

	var w io.Writer = out
	var gz *gzip.Writer
	if gzipOutput {
		gz = gzip.NewWriter(out)
		w = gz
	}

	if err := binarydist.Diff(oldFile, newFile, w); err != nil {
		return fmt.Errorf("diffing %s -> %s: %w", oldApkPath, newApkPath, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("flushing gzip delta: %w", err)
		}
	}
	return out.Sync()
}

// Apply reconstructs the target APK at outputPath from oldApkPath and the
// patch at deltaPath.
func Apply(oldApkPath, deltaPath, outputPath string, deltaIsGzipped bool) (err error) {
	oldFile, err := os.Open(oldApkPath)
	if err != nil {
		return fmt.Errorf("opening base APK %s: %w", oldApkPath, err)
	}
	defer oldFile.Close()

	deltaFile, err := os.Open(deltaPath)
	if err != nil {
		return fmt.Errorf("opening delta %s: %w", deltaPath, err)
	}
	defer deltaFile.Close()

	var r io.Reader = deltaFile
	if deltaIsGzipped {
		gz, err := gzip.NewReader(deltaFile)
		if err != nil {
			return fmt.Errorf("opening gzip delta %s: %w", deltaPath, err)
		}
		defer gz.Close()
		r = gz
	}

	out, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating patch output %s: %w", outputPath, err)
	}
	defer func() {
		closeErr := out.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(outputPath)
		}
	}()

	if err := binarydist.Patch(oldFile, out, r); err != nil {
		return fmt.Errorf("applying delta %s to %s: %w", deltaPath, oldApkPath, err)
	}
	return out.Sync()
}

// EstimateTempSpace estimates the temp-disk bytes a Generate call between
// files of the given sizes will consume: both inputs plus roughly one
// working copy of the larger, since bsdiff buffers its suffix array over
// the old file and its control/diff/extra streams over the new one.
func EstimateTempSpace(oldSize, newSize int64) int64 {
	larger := oldSize
	if newSize > larger {
		larger = newSize
	}
	return oldSize + newSize + larger
}
