package ui

import "sync"

// printMu serializes every write to the shared progress line: the delta
// engine's progress printer and the release-notes editor bridge both
// acquire it, so an interactive edit session never races with a
// carriage-return overwrite mid-render (spec §4.G, §4.I).
var printMu sync.Mutex

// AcquirePrintMutex locks the shared print mutex and returns the unlock
// function.
func AcquirePrintMutex() func() {
	printMu.Lock()
	return printMu.Unlock
}
