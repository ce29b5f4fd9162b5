package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/sphgrid/config"
	"github.com/pthm-cable/sphgrid/systems"
)

// DiagnosticsRecord is one row of diagnostics.csv.
type DiagnosticsRecord struct {
	Step int64 `csv:"step"`
	systems.HashDiagnostics
}

// csvStream is one CSV file that writes its header with the first record.
type csvStream struct {
	file          *os.File
	headerWritten bool
}

func (s *csvStream) write(records any) error {
	if !s.headerWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, s.file); err != nil {
			return err
		}
		s.headerWritten = true
		return nil
	}
	// Subsequent writes skip headers
	return gocsv.MarshalWithoutHeaders(records, s.file)
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir         string
	telemetry   csvStream
	perf        csvStream
	bookmarks   csvStream
	diagnostics csvStream
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	streams := []struct {
		name   string
		stream *csvStream
	}{
		{"telemetry.csv", &om.telemetry},
		{"perf.csv", &om.perf},
		{"bookmarks.csv", &om.bookmarks},
		{"diagnostics.csv", &om.diagnostics},
	}
	for _, s := range streams {
		f, err := os.Create(filepath.Join(dir, s.name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", s.name, err)
		}
		s.stream.file = f
	}

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteTelemetry writes a window stats record to telemetry.csv.
func (om *OutputManager) WriteTelemetry(stats WindowStats) error {
	if om == nil {
		return nil
	}
	if err := om.telemetry.write([]WindowStats{stats}); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int64) error {
	if om == nil {
		return nil
	}
	if err := om.perf.write([]PerfStatsCSV{stats.ToCSV(windowEnd)}); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteBookmark writes a bookmark record to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	if err := om.bookmarks.write([]Bookmark{b}); err != nil {
		return fmt.Errorf("writing bookmark: %w", err)
	}
	return nil
}

// WriteDiagnostics writes a hash diagnostics record to diagnostics.csv.
func (om *OutputManager) WriteDiagnostics(step int64, d systems.HashDiagnostics) error {
	if om == nil {
		return nil
	}
	if err := om.diagnostics.write([]DiagnosticsRecord{{Step: step, HashDiagnostics: d}}); err != nil {
		return fmt.Errorf("writing diagnostics: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, s := range []*csvStream{&om.telemetry, &om.perf, &om.bookmarks, &om.diagnostics} {
		if s.file == nil {
			continue
		}
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		s.file = nil
	}
	return firstErr
}
