// Package pool implements the real-time-safe fixed-size memory pool
// collaborator (spec §5). The clock package does not draw its own
// buffers from it; it is a standalone pool for callers' buffers. No
// general-purpose allocation happens on the timed path once the free
// list is reserved: all growth happens up front and reuse happens
// through a free list, mirroring the free-list-over-sync.Pool idiom
// used for field-slice reuse elsewhere in the logging stack.
package pool

import (
	"golang.org/x/sys/unix"

	"github.com/sarchlab/mbench/fault"
)

// Pool hands out blocks of one fixed size, in bytes. The size is
// rounded up to the host page size so each block is independently
// page-aligned.
type Pool struct {
	blockSize int
	pageSize  int
	free      [][]byte
}

// New creates a pool whose blocks are each at least blockSize bytes,
// rounded up to a whole number of pages.
func New(blockSize int) *Pool {
	if blockSize <= 0 {
		fault.Invariant("pool.New", "block size must be positive, got %d", blockSize)
	}
	pageSize := unix.Getpagesize()
	pages := (blockSize + pageSize - 1) / pageSize
	return &Pool{blockSize: pages * pageSize, pageSize: pageSize}
}

// Allocate returns a page-aligned, zeroed block of the pool's
// configured size, reusing a previously liberated block when one is
// available. mmap is only ever called here, never on the timing path
// once the pool has warmed up its free list via Reserve.
func (p *Pool) Allocate() ([]byte, error) {
	if n := len(p.free); n > 0 {
		b := p.free[n-1]
		p.free = p.free[:n-1]
		clear(b)
		return b, nil
	}

	b, err := unix.Mmap(-1, 0, p.blockSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Liberate returns a block to the pool's free list for reuse. block
// must have come from Allocate on this pool.
func (p *Pool) Liberate(block []byte) {
	p.free = append(p.free, block)
}

// Reserve pre-allocates n blocks into the free list, so that the
// timing path's first Allocate calls are guaranteed to hit the free
// list instead of calling mmap.
func (p *Pool) Reserve(n int) error {
	blocks := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		b, err := unix.Mmap(-1, 0, p.blockSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
		if err != nil {
			for _, prior := range blocks {
				_ = unix.Munmap(prior)
			}
			return err
		}
		blocks = append(blocks, b)
	}
	p.free = append(p.free, blocks...)
	return nil
}

// BlockSize returns the actual (page-rounded) block size.
func (p *Pool) BlockSize() int { return p.blockSize }

// Close unmaps every block currently sitting in the free list. Blocks
// handed out via Allocate and never liberated are not tracked and
// must be unmapped by the caller directly.
func (p *Pool) Close() {
	for _, b := range p.free {
		_ = unix.Munmap(b)
	}
	p.free = nil
}
