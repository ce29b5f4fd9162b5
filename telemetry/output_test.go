package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/sphgrid/config"
	"github.com/pthm-cable/sphgrid/systems"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v", om, err)
	}
	// Nil manager swallows writes.
	if err := om.WriteTelemetry(WindowStats{}); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
}

func TestOutputManagerWritesHeaderOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := om.WriteConfig(config.Default()); err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		if err := om.WriteTelemetry(WindowStats{WindowEndStep: int64(i * 100), Mode: "box"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := om.WriteBookmark(Bookmark{Type: BookmarkSettled, Step: 300, Description: "steady"}); err != nil {
		t.Fatal(err)
	}
	if err := om.WriteDiagnostics(300, systems.HashDiagnostics{UsedBuckets: 12, MaxCollisions: 3}); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("telemetry.csv has %d lines, want header + 3", len(lines))
	}
	if !strings.HasPrefix(lines[0], "window_end,") {
		t.Errorf("header = %q", lines[0])
	}
	if strings.Count(string(data), "window_end") != 1 {
		t.Error("header written more than once")
	}

	diag, err := os.ReadFile(filepath.Join(dir, "diagnostics.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(diag), "step,") {
		t.Errorf("diagnostics header = %q", strings.SplitN(string(diag), "\n", 2)[0])
	}

	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config.yaml missing: %v", err)
	}
}
