package systems

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/sphgrid/compute"
)

// ErrScanCapacity is returned when a scan request exceeds width² entries or
// the width is unusable.
var ErrScanCapacity = errors.New("scan capacity exceeded")

// CountSource is anything the scanner can read per-bucket counts from.
type CountSource interface {
	Len() int
	Count(b int) uint32
}

// CountSlice adapts a plain slice to CountSource.
type CountSlice []uint32

func (s CountSlice) Len() int           { return len(s) }
func (s CountSlice) Count(b int) uint32 { return s[b] }

// PrefixScanner computes an exclusive prefix sum over bucket counts with a
// two-level work-efficient scan: per-group scans, a scan of the group totals
// in a single group, then a propagation pass.
type PrefixScanner struct {
	Offsets   []uint32 // exclusive prefix sum, one per bucket
	GroupSums []uint32 // per-group totals, scanned in place by ScanTotals

	n         int
	width     int
	numGroups int
}

// NewPrefixScanner allocates a scanner for n entries with group width width.
// It fails before allocating when the request cannot be represented.
func NewPrefixScanner(n, width int) (*PrefixScanner, error) {
	if width <= 0 || width&(width-1) != 0 {
		return nil, fmt.Errorf("%w: width %d is not a power of two", ErrScanCapacity, width)
	}
	if n <= 0 || n > width*width {
		return nil, fmt.Errorf("%w: %d entries with width %d (max %d)", ErrScanCapacity, n, width, width*width)
	}
	numGroups := (n + width - 1) / width
	return &PrefixScanner{
		Offsets:   make([]uint32, n),
		GroupSums: make([]uint32, width),
		n:         n,
		width:     width,
		numGroups: numGroups,
	}, nil
}

// Width returns the group width the scanner was built for.
func (s *PrefixScanner) Width() int { return s.width }

// NumGroups returns the number of first-level groups.
func (s *PrefixScanner) NumGroups() int { return s.numGroups }

// Scan runs all three phases. The device group size must equal Width.
func (s *PrefixScanner) Scan(dev *compute.Device, src CountSource) {
	s.ScanGroups(dev, src)
	s.ScanTotals(dev)
	s.Propagate(dev)
}

// ScanGroups is phase 1: each group scans its slice of counts in shared
// memory and records its total.
func (s *PrefixScanner) ScanGroups(dev *compute.Device, src CountSource) {
	dev.DispatchThreads(s.n, func(g compute.Group) {
		sh := g.Shared[:s.width]
		for l := 0; l < s.width; l++ {
			if l < g.Count {
				sh[l] = src.Count(g.Base + l)
			} else {
				sh[l] = 0
			}
		}
		total := blellochScan(sh)
		copy(s.Offsets[g.Base:g.Base+g.Count], sh[:g.Count])
		s.GroupSums[g.ID] = total
	})
}

// ScanTotals is phase 2: a single group scans the group totals in place.
func (s *PrefixScanner) ScanTotals(dev *compute.Device) {
	for i := s.numGroups; i < s.width; i++ {
		s.GroupSums[i] = 0
	}
	dev.Dispatch(1, func(g compute.Group) {
		sh := g.Shared[:s.width]
		copy(sh, s.GroupSums)
		blellochScan(sh)
		copy(s.GroupSums, sh)
	})
}

// Propagate is phase 3: adds each group's base offset to its entries.
func (s *PrefixScanner) Propagate(dev *compute.Device) {
	dev.DispatchThreads(s.n, func(g compute.Group) {
		base := s.GroupSums[g.ID]
		for l := 0; l < g.Count; l++ {
			s.Offsets[g.Base+l] += base
		}
	})
}

// blellochScan replaces a with its exclusive prefix sum and returns the total.
// len(a) must be a power of two.
func blellochScan(a []uint32) uint32 {
	n := len(a)
	// Up-sweep
	for d := 1; d < n; d <<= 1 {
		for i := 2*d - 1; i < n; i += 2 * d {
			a[i] += a[i-d]
		}
	}
	total := a[n-1]
	a[n-1] = 0
	// Down-sweep
	for d := n >> 1; d >= 1; d >>= 1 {
		for i := 2*d - 1; i < n; i += 2 * d {
			t := a[i-d]
			a[i-d] = a[i]
			a[i] += t
		}
	}
	return total
}
