package diskcache

import (
	"sort"

	xdsync "github.com/majestrate/xdcache/lib/sync"
)

// Cache is a write-back, piece-oriented disk cache. It owns an indexed
// collection of pieces and their blocks, drives incremental v1/v2
// hashing, and flushes dirty runs to durable storage under a three-tier
// policy. A single mutex guards everything; long-running work (hashing,
// flushing) is performed with the mutex released under a per-piece pin
// flag, following the pattern lib/storage/fs.go uses for its own
// access/seedAccess mutexes, generalized to per-piece granularity.
//
// Debug, when true, runs the invariant checker after every mutating
// operation. It mirrors how the teacher gates verbose behavior with
// log.SetLevel("debug") rather than a build tag: tests set it, production
// callers leave it false.
type Cache struct {
	mtx xdsync.Mutex

	pieces map[PieceLocation]*pieceEntry

	// dirtyBlocks is the number of blocks across all pieces that need to
	// be flushed to disk, i.e. the number of blocks holding a live write
	// job. It is updated under the mutex together with the blocks
	// themselves.
	dirtyBlocks int
	// flushingBlocks is the number of blocks currently being flushed by
	// some thread, used to avoid over-shooting the flush target.
	flushingBlocks int

	metrics *Metrics

	Debug bool
}

// NewCache creates an empty Cache. metrics may be nil.
func NewCache(metrics *Metrics) *Cache {
	return &Cache{
		pieces:  make(map[PieceLocation]*pieceEntry),
		metrics: metrics,
	}
}

// Size returns the number of dirty (not yet flushed) blocks in the cache.
func (c *Cache) Size() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.dirtyBlocks
}

// NumFlushing returns the number of blocks currently being flushed.
func (c *Cache) NumFlushing() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.flushingBlocks
}

// snapshotByReadyToFlush returns every piece entry, ordered with
// ready-to-flush pieces first (stable beyond that). Must be called with
// the mutex held. The snapshot is taken under the lock but iterated after
// releasing it in Phase A, so it's immune to the "view2.modify() mutates
// the container we're iterating over" hazard the original source calls
// out: mutating a *pieceEntry through its stable pointer never reorders
// this slice.
func (c *Cache) snapshotByReadyToFlush() []*pieceEntry {
	out := make([]*pieceEntry, 0, len(c.pieces))
	for _, pe := range c.pieces {
		out = append(out, pe)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].readyToFlush && !out[j].readyToFlush
	})
	return out
}

// snapshotByCheapToFlush returns every piece entry ordered by
// cheapToFlush() descending.
func (c *Cache) snapshotByCheapToFlush() []*pieceEntry {
	out := make([]*pieceEntry, 0, len(c.pieces))
	for _, pe := range c.pieces {
		out = append(out, pe)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].cheapToFlush() > out[j].cheapToFlush()
	})
	return out
}

// snapshotByLocation returns every piece entry ordered by PieceLocation.
func (c *Cache) snapshotByLocation() []*pieceEntry {
	out := make([]*pieceEntry, 0, len(c.pieces))
	for _, pe := range c.pieces {
		out = append(out, pe)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].location.Less(out[j].location)
	})
	return out
}

// piecesForTorrent returns the locations of every piece belonging to tid,
// snapshotted so flush_storage's erase pass doesn't invalidate its own
// iteration - the same reason the original source copies piece indexes
// into a std::vector before erasing.
func (c *Cache) piecesForTorrent(tid TorrentID) []PieceLocation {
	var out []PieceLocation
	for loc := range c.pieces {
		if loc.Torrent == tid {
			out = append(out, loc)
		}
	}
	return out
}
