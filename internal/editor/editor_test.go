package editor

import "testing"

func TestStripSentinelsRemovesCommentLines(t *testing.T) {
	buf := "Fixed a crash on startup.\n\n<!-- package: com.example.app -->\n<!-- version: 7 -->\n<!-- last edited: 2026-01-01 00:00:00 UTC -->\n"
	got := stripSentinels(buf)
	want := "Fixed a crash on startup."
	if got != want {
		t.Errorf("stripSentinels() = %q, want %q", got, want)
	}
}

func TestStripSentinelsBlankResultIsEmpty(t *testing.T) {
	buf := "\n<!-- package: com.example.app -->\n<!-- version: 7 -->\n"
	if got := stripSentinels(buf); got != "" {
		t.Errorf("stripSentinels() = %q, want empty", got)
	}
}

func TestStripSentinelsKeepsNonSentinelLines(t *testing.T) {
	buf := "line one\n<!-- package: com.example.app -->\nline two\n"
	got := stripSentinels(buf)
	want := "line one\nline two"
	if got != want {
		t.Errorf("stripSentinels() = %q, want %q", got, want)
	}
}
