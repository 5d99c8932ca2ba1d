package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"media-converter/internal/media"

	"golang.org/x/term"
)

const (
	defaultBarWidth = 80
	minBarCells     = 10
	// plainInterval throttles line output when stdout is not a terminal.
	plainInterval = 5 * time.Second
)

// progressBar renders conversion progress. On a terminal it redraws one
// line in place; otherwise it prints a plain line every plainInterval
// and always on completion.
type progressBar struct {
	mu    sync.Mutex
	w     io.Writer
	tty   bool
	width int
	last  time.Time
	drawn bool
}

func newProgressBar(w io.Writer) *progressBar {
	b := &progressBar{w: w, width: defaultBarWidth}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b.tty = true
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
			b.width = cols
		}
	}
	return b
}

// Update draws p. It is called from the progress monitor and returns
// quickly.
func (b *progressBar) Update(p media.ConversionProgress) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tty {
		fmt.Fprintf(b.w, "\r%s", renderBar(p, b.width))
		b.drawn = true
		return
	}

	now := time.Now()
	if !b.last.IsZero() && now.Sub(b.last) < plainInterval && p.Progress < 1 {
		return
	}
	b.last = now
	fmt.Fprintln(b.w, renderStatus(p))
}

// Finish ends the in-place line.
func (b *progressBar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tty && b.drawn {
		fmt.Fprintln(b.w)
	}
}

// renderBar returns a single terminal line at most width columns wide:
// a bar, the percentage and the status fields.
func renderBar(p media.ConversionProgress, width int) string {
	status := renderStatus(p)
	cells := width - len(status) - 3
	if cells < minBarCells {
		// Not enough room for both; the status wins.
		if len(status) > width {
			return status[:width]
		}
		return status
	}

	filled := int(math.Round(clamp01(p.Progress) * float64(cells)))
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", cells-filled) + "] " + status
}

// renderStatus formats the numeric fields of p.
func renderStatus(p media.ConversionProgress) string {
	parts := []string{fmt.Sprintf("%5.1f%%", clamp01(p.Progress)*100)}
	if p.FPS > 0 {
		parts = append(parts, fmt.Sprintf("%.0f fps", p.FPS))
	}
	if p.Speed > 0 {
		parts = append(parts, fmt.Sprintf("%.2fx", p.Speed))
	}
	if p.ETASeconds != nil {
		parts = append(parts, "ETA "+formatDuration(*p.ETASeconds))
	}
	return strings.Join(parts, "  ")
}

// formatDuration renders seconds as H:MM:SS, or M:SS under an hour.
func formatDuration(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	total := int(math.Round(seconds))
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
