// Package compute runs data-parallel kernels over fixed-width thread groups.
//
// A Device owns a pool of persistent worker goroutines. Each Dispatch splits
// its groups into contiguous chunks, hands one chunk to each worker and
// returns only after every chunk has finished, so consecutive dispatches are
// separated by a full barrier: everything written by one dispatch is visible
// to the next.
package compute

import (
	"runtime"
	"sync"
)

// Group describes one thread group handed to a kernel.
type Group struct {
	ID     int      // Group index within the dispatch
	Base   int      // Global index of the group's first thread
	Size   int      // Group width (threads per group)
	Count  int      // Active threads; less than Size only for the trailing group
	Worker int      // Worker running this group, for per-worker scratch
	Shared []uint32 // Group-shared scratch of length Size, private to this worker
}

// Kernel is invoked once per group.
type Kernel func(g Group)

// workChunk represents a range of groups for a worker to process.
type workChunk struct {
	start, end int
	threads    int
	kernel     Kernel
}

// Device dispatches kernels on a worker pool. Dispatch is not safe for
// concurrent use; callers serialise stages.
type Device struct {
	groupSize  int
	numWorkers int
	shared     [][]uint32

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

// NewDevice creates a device with the given group width. numWorkers <= 0
// uses GOMAXPROCS.
func NewDevice(groupSize, numWorkers int) *Device {
	if groupSize < 1 {
		groupSize = 1
	}
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	shared := make([][]uint32, numWorkers)
	for i := range shared {
		shared[i] = make([]uint32, groupSize)
	}
	return &Device{
		groupSize:  groupSize,
		numWorkers: numWorkers,
		shared:     shared,
	}
}

// GroupSize returns the thread-group width.
func (d *Device) GroupSize() int { return d.groupSize }

// NumWorkers returns the worker count; Group.Worker is always below it.
func (d *Device) NumWorkers() int { return d.numWorkers }

// Running reports whether the worker goroutines are up.
func (d *Device) Running() bool { return d.running }

// GroupsFor returns the number of groups needed to cover n threads.
func (d *Device) GroupsFor(n int) int {
	return (n + d.groupSize - 1) / d.groupSize
}

// startWorkers launches persistent worker goroutines.
func (d *Device) startWorkers() {
	if d.running {
		return
	}

	d.workChan = make(chan workChunk, d.numWorkers)
	d.doneChan = make(chan struct{}, d.numWorkers)
	d.stopChan = make(chan struct{})
	d.running = true

	for i := 0; i < d.numWorkers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Close signals all workers to exit and waits for them. The device can be
// reused afterwards; workers restart on the next parallel dispatch.
func (d *Device) Close() {
	if !d.running {
		return
	}

	close(d.stopChan)
	d.wg.Wait()
	close(d.workChan)
	close(d.doneChan)
	d.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (d *Device) worker(workerID int) {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopChan:
			return
		case chunk, ok := <-d.workChan:
			if !ok {
				return
			}
			d.runChunk(chunk, workerID)
			d.doneChan <- struct{}{}
		}
	}
}

func (d *Device) runChunk(c workChunk, workerID int) {
	shared := d.shared[workerID]
	for id := c.start; id < c.end; id++ {
		base := id * d.groupSize
		count := d.groupSize
		if rem := c.threads - base; rem < count {
			count = rem
		}
		c.kernel(Group{
			ID:     id,
			Base:   base,
			Size:   d.groupSize,
			Count:  count,
			Worker: workerID,
			Shared: shared,
		})
	}
}

// Dispatch runs kernel over numGroups full-width groups and blocks until all
// of them have completed.
func (d *Device) Dispatch(numGroups int, kernel Kernel) {
	d.dispatch(numGroups, numGroups*d.groupSize, kernel)
}

// DispatchThreads runs kernel over enough groups to cover n threads. The
// trailing group reports Count < Size when n is not a multiple of the width.
func (d *Device) DispatchThreads(n int, kernel Kernel) {
	d.dispatch(d.GroupsFor(n), n, kernel)
}

func (d *Device) dispatch(numGroups, threads int, kernel Kernel) {
	if numGroups <= 0 {
		return
	}

	// A single group or a single worker gains nothing from the pool.
	if numGroups == 1 || d.numWorkers == 1 {
		d.runChunk(workChunk{start: 0, end: numGroups, threads: threads, kernel: kernel}, 0)
		return
	}

	if !d.running {
		d.startWorkers()
	}

	chunkSize := (numGroups + d.numWorkers - 1) / d.numWorkers

	chunksDispatched := 0
	for w := 0; w < d.numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > numGroups {
			end = numGroups
		}
		if start >= end {
			continue
		}

		d.workChan <- workChunk{start: start, end: end, threads: threads, kernel: kernel}
		chunksDispatched++
	}

	// Barrier: wait for all chunks to complete
	for i := 0; i < chunksDispatched; i++ {
		<-d.doneChan
	}
}
