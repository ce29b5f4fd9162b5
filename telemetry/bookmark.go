package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkEnergySpike      BookmarkType = "energy_spike"
	BookmarkCompressionSpike BookmarkType = "compression_spike"
	BookmarkClampSurge       BookmarkType = "clamp_surge"
	BookmarkSettled          BookmarkType = "settled"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Step        int64        `csv:"step"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"step", b.Step,
		"description", b.Description,
	)
}

// BookmarkDetector flags windows where the fluid does something worth a look:
// sudden energy gain (usually instability), sharp compression, a wave of
// boundary hits, or a settled state.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	settledWindowsCount int // consecutive windows with steady kinetic energy
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for settled detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		if b := bd.checkEnergySpike(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkCompressionSpike(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkClampSurge(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}
	if b := bd.checkSettled(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(stats)
	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

// recent returns up to n of the most recent history entries, oldest first.
func (bd *BookmarkDetector) recent(n int) []WindowStats {
	if !bd.historyFull {
		h := bd.history[:bd.historyIdx]
		if len(h) > n {
			h = h[len(h)-n:]
		}
		return append([]WindowStats(nil), h...)
	}
	if n > bd.historySize {
		n = bd.historySize
	}
	out := make([]WindowStats, 0, n)
	for i := n; i > 0; i-- {
		out = append(out, bd.history[(bd.historyIdx-i+bd.historySize)%bd.historySize])
	}
	return out
}

func (bd *BookmarkDetector) checkEnergySpike(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.KineticEnergy
	}
	avg := total / float64(len(history))
	if avg <= 0 {
		return nil
	}

	if stats.KineticEnergy > avg*3.0 {
		return &Bookmark{
			Type:        BookmarkEnergySpike,
			Step:        stats.WindowEndStep,
			Description: fmt.Sprintf("Kinetic energy %.3g is %.1fx average (%.3g)", stats.KineticEnergy, stats.KineticEnergy/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkCompressionSpike(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.DensityP90
	}
	avg := total / float64(len(history))
	if avg <= 0 {
		return nil
	}

	if stats.DensityP90 > avg*2.0 {
		return &Bookmark{
			Type:        BookmarkCompressionSpike,
			Step:        stats.WindowEndStep,
			Description: fmt.Sprintf("Density p90 %.3g is %.1fx average (%.3g)", stats.DensityP90, stats.DensityP90/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkClampSurge(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.ClampRate
	}
	avg := total / float64(len(history))

	// A surge from a quiet boundary is still a surge.
	if stats.ClampRate > 0.05 && stats.ClampRate > avg*2.0 {
		return &Bookmark{
			Type:        BookmarkClampSurge,
			Step:        stats.WindowEndStep,
			Description: fmt.Sprintf("Clamp rate %.3f vs average %.3f", stats.ClampRate, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkSettled(stats WindowStats) *Bookmark {
	recent := append(bd.recent(3), stats)
	if len(recent) < 4 {
		return nil
	}

	var sum float64
	for _, h := range recent {
		sum += h.KineticEnergy
	}
	mean := sum / float64(len(recent))

	var variance float64
	for _, h := range recent {
		d := h.KineticEnergy - mean
		variance += d * d
	}
	variance /= float64(len(recent))

	// CV² < 0.01 means the energy moves less than 10% window to window
	if mean > 0 && variance/(mean*mean) < 0.01 {
		bd.settledWindowsCount++
	} else {
		bd.settledWindowsCount = 0
	}

	if bd.settledWindowsCount == 5 { // trigger exactly once per settled stretch
		return &Bookmark{
			Type:        BookmarkSettled,
			Step:        stats.WindowEndStep,
			Description: fmt.Sprintf("Kinetic energy steady near %.3g for 5+ windows", mean),
		}
	}
	return nil
}
