package delta

import (
	"fmt"
	"os"

	"github.com/andrel/aaus/internal/apkid"
	"github.com/andrel/aaus/internal/ui"
)

// progressEvent is one line the printer either buffers (before
// startPrinting latches) or renders immediately (after).
type progressEvent struct {
	pkg           apkid.PackageName
	line          string
	warning       bool
	startPrinting bool
}

// runPrinter renders progress events to stdout as they arrive, buffering
// everything until a startPrinting event latches (so package-discovery
// noise from runPackageTask doesn't interleave with whatever status lines
// the caller is still printing for the insertion step itself). It shares
// the print mutex with the release-notes editor so a paused editor session
// never races with an overwritten progress line (spec §4.G, §4.I).
func (e *Engine) runPrinter() {
	var buffered []progressEvent
	printing := false

	render := func(ev progressEvent) {
		release := ui.AcquirePrintMutex()
		defer release()
		if ui.QuietMode && !ev.warning {
			return
		}
		prefix := "generating delta"
		if ev.warning {
			prefix = "warning"
		}
		fmt.Fprintf(os.Stdout, "\r\033[K%s: %s\n", prefix, ev.line)
	}

	for ev := range e.progress {
		if ev.startPrinting {
			printing = true
			for _, b := range buffered {
				render(b)
			}
			buffered = nil
			continue
		}
		if !printing {
			buffered = append(buffered, ev)
			continue
		}
		render(ev)
	}
}
