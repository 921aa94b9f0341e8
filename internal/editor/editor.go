// Package editor is the Release-Notes Editor Bridge (spec §4.I): it
// shells out to the operator's $EDITOR with a scratch buffer seeded from
// existing notes plus sentinel-prefixed context comments, then strips
// those comments back out of whatever the operator saved.
package editor

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/andrel/aaus/internal/apkid"
	"github.com/andrel/aaus/internal/ui"
)

const sentinelPrefix = "<!-- "
const sentinelSuffix = " -->"

// EditReleaseNotes opens $EDITOR on a scratch buffer for pkg/version,
// seeded with existing (if editing a prior entry) and returns the
// operator's edited text, or nil if the result is blank (spec line 178).
// The print mutex is held for the editor's entire lifetime so the delta
// engine's progress printer cannot interleave with the terminal (spec
// line 162).
func EditReleaseNotes(pkg apkid.PackageName, version apkid.VersionCode, existing *string, lastEdit apkid.Timestamp) (*string, error) {
	release := ui.AcquirePrintMutex()
	defer release()

	tmp, err := os.CreateTemp("", "release-notes-*.md")
	if err != nil {
		return nil, fmt.Errorf("creating scratch buffer: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := writeScratchBuffer(tmp, pkg, version, existing, lastEdit); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing scratch buffer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing scratch buffer: %w", err)
	}

	if err := runEditor(tmpPath); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("reading edited buffer: %w", err)
	}

	text := stripSentinels(string(raw))
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return &text, nil
}

func writeScratchBuffer(w *os.File, pkg apkid.PackageName, version apkid.VersionCode, existing *string, lastEdit apkid.Timestamp) error {
	bw := bufio.NewWriter(w)
	if existing != nil {
		fmt.Fprintln(bw, *existing)
	} else {
		fmt.Fprintln(bw)
	}
	fmt.Fprintf(bw, "%spackage: %s%s\n", sentinelPrefix, pkg, sentinelSuffix)
	fmt.Fprintf(bw, "%sversion: %d%s\n", sentinelPrefix, version.Int64(), sentinelSuffix)
	fmt.Fprintf(bw, "%slast edited: %s%s\n", sentinelPrefix, lastEdit.Time().Format("2006-01-02 15:04:05 MST"), sentinelSuffix)
	return bw.Flush()
}

// stripSentinels removes every line matching the sentinel comment pattern
// and trims trailing newlines (spec line 178).
func stripSentinels(buf string) string {
	lines := strings.Split(buf, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, sentinelPrefix) && strings.HasSuffix(trimmed, sentinelSuffix) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimRight(strings.Join(kept, "\n"), "\n")
}

func runEditor(path string) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}
	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running editor %q: %w", editor, err)
	}
	return nil
}

// RenderPreview returns text rendered as terminal-formatted markdown, for
// operators confirming release notes before they're committed. Falls back
// to the raw text if rendering fails (e.g. no TTY style available).
func RenderPreview(text string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle())
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}
