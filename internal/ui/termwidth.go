package ui

import (
	"sync"

	"golang.org/x/term"
)

const defaultTermWidth = 100

// termWidthState tracks the terminal-width poller's failure budget (spec
// §5: "after 10 consecutive failures it stops polling and uses a default
// width of 100 columns").
var termWidthState struct {
	mu             sync.Mutex
	consecutiveErr int
	disabled       bool
}

const maxTermWidthFailures = 10

// TermWidth polls the terminal width on the file descriptor fd, falling
// back to defaultTermWidth once the poller has failed maxTermWidthFailures
// times in a row (and thereafter, permanently, to avoid a hot syscall loop
// against a terminal that will never answer).
func TermWidth(fd int) int {
	termWidthState.mu.Lock()
	disabled := termWidthState.disabled
	termWidthState.mu.Unlock()
	if disabled {
		return defaultTermWidth
	}

	w, _, err := term.GetSize(fd)
	termWidthState.mu.Lock()
	defer termWidthState.mu.Unlock()
	if err != nil || w <= 0 {
		termWidthState.consecutiveErr++
		if termWidthState.consecutiveErr >= maxTermWidthFailures {
			termWidthState.disabled = true
		}
		return defaultTermWidth
	}
	termWidthState.consecutiveErr = 0
	return w
}
