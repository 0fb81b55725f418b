package cli

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// progressLine rewrites one status line on a terminal as files finish.
type progressLine struct {
	mu   sync.Mutex
	out  io.Writer
	last int
}

// newProgress returns nil unless w is an interactive terminal.
func newProgress(w io.Writer) *progressLine {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return &progressLine{out: w}
}

func (p *progressLine) update(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if done <= p.last {
		return
	}
	p.last = done
	fmt.Fprintf(p.out, "\rIndexing files: %d/%d", done, total)
	if done == total {
		fmt.Fprintln(p.out)
	}
}
