package telemetry

import "testing"

func hasBookmark(bms []Bookmark, typ BookmarkType) bool {
	for _, bm := range bms {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_EnergySpike(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndStep: int64(i * 500), KineticEnergy: 100})
	}

	bms := bd.Check(WindowStats{WindowEndStep: 2500, KineticEnergy: 1000})
	if !hasBookmark(bms, BookmarkEnergySpike) {
		t.Error("expected energy_spike bookmark")
	}
}

func TestBookmarkDetector_CompressionSpike(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndStep: int64(i * 500), DensityP90: 12})
	}

	bms := bd.Check(WindowStats{WindowEndStep: 2500, DensityP90: 40})
	if !hasBookmark(bms, BookmarkCompressionSpike) {
		t.Error("expected compression_spike bookmark")
	}
}

func TestBookmarkDetector_ClampSurge(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 4; i++ {
		bd.Check(WindowStats{WindowEndStep: int64(i * 500), ClampRate: 0.01})
	}

	if bms := bd.Check(WindowStats{WindowEndStep: 2000, ClampRate: 0.3}); !hasBookmark(bms, BookmarkClampSurge) {
		t.Error("expected clamp_surge bookmark")
	}
	// Small absolute rates never count as a surge.
	if bms := bd.Check(WindowStats{WindowEndStep: 2500, ClampRate: 0.04}); hasBookmark(bms, BookmarkClampSurge) {
		t.Error("unexpected clamp_surge for low rate")
	}
}

func TestBookmarkDetector_SettledTriggersOnce(t *testing.T) {
	bd := NewBookmarkDetector(10)

	count := 0
	for i := 0; i < 20; i++ {
		bms := bd.Check(WindowStats{WindowEndStep: int64(i * 500), KineticEnergy: 50})
		if hasBookmark(bms, BookmarkSettled) {
			count++
		}
	}
	if count != 1 {
		t.Errorf("settled fired %d times, want 1", count)
	}
}

func TestBookmarkDetector_QuietHistoryNoBookmarks(t *testing.T) {
	bd := NewBookmarkDetector(5)
	for i := 0; i < 3; i++ {
		bms := bd.Check(WindowStats{WindowEndStep: int64(i), KineticEnergy: float64(10 + i*20)})
		if len(bms) != 0 {
			t.Errorf("window %d: unexpected bookmarks %v", i, bms)
		}
	}
}
