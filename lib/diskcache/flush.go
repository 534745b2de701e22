package diskcache

import (
	"time"

	"github.com/majestrate/xdcache/lib/bittorrent"
	"github.com/majestrate/xdcache/lib/log"
)

// FlushToDisk drains dirty blocks down to target (a count of blocks still
// allowed to sit dirty once the call returns) in three tiers, cheapest
// first:
//
//   - Phase A flushes every piece that is fully ready_to_flush, in full,
//     regardless of target - a complete piece is never worth holding back.
//   - Phase B, only entered if still over target, flushes the cheapest
//     partial runs first: blocks already folded into a hash but not yet
//     durable, ordered by how many such blocks each piece has.
//   - Phase C, the last resort, forces partial flushes of the contiguous
//     write-jobbed run at each piece's flushedCursor, in piece-location
//     order, whether or not the hasher has reached those blocks yet; a
//     flushed block the hasher hasn't reached keeps its buffer (see
//     flushSpan) until KickHasher consumes it.
//
// Any Writer call that returns fewer blocks than it was offered is treated
// as backpressure: FlushToDisk stops immediately rather than pushing
// further work at a collaborator that just signalled it's full.
func (c *Cache) FlushToDisk(writer Writer, target int, clearCb ClearFunc) {
	start := time.Now()
	defer c.metrics.observeFlush("flush_to_disk", start)

	if c.flushPhaseReady(writer, clearCb) {
		return
	}
	if c.dirtyAboveTarget(target) {
		if c.flushPhaseCheap(writer, target, clearCb) {
			return
		}
	}
	if c.dirtyAboveTarget(target) {
		c.flushPhaseForced(writer, target, clearCb)
	}
}

func (c *Cache) dirtyAboveTarget(target int) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.dirtyBlocks-c.flushingBlocks > target
}

// flushPhaseReady is Phase A. Returns true if a Writer signalled
// backpressure and the whole flush call should stop.
func (c *Cache) flushPhaseReady(writer Writer, clearCb ClearFunc) bool {
	c.mtx.Lock()
	pieces := c.snapshotByReadyToFlush()
	c.mtx.Unlock()

	for _, pe := range pieces {
		c.mtx.Lock()
		ready := pe.readyToFlush
		flushing := pe.flushing
		from := pe.flushedCursor
		count := pe.blocksInPiece - from
		c.mtx.Unlock()

		if !ready {
			// snapshotByReadyToFlush puts every ready piece first; once we
			// hit a non-ready one there's nothing left to do in Phase A.
			break
		}
		if flushing || count <= 0 {
			continue
		}
		n := c.flushSpan(pe, from, count, writer, "ready", clearCb)
		c.eraseIfDone(pe)
		if n < count {
			return true
		}
	}
	return false
}

// eraseIfDone removes pe from the cache if its flush just finished and its
// final hash was already delivered to a client - per §4.5 Phase A, a piece
// with nothing left to do (fully flushed, hash already returned) is never
// worth keeping resident.
func (c *Cache) eraseIfDone(pe *pieceEntry) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if pe.flushing || pe.hashing {
		return
	}
	if pe.flushedCursor == pe.blocksInPiece && pe.pieceHashReturned {
		delete(c.pieces, pe.location)
		if c.Debug {
			c.checkInvariantLocked()
		}
	}
}

// flushPhaseCheap is Phase B. Returns true on backpressure.
func (c *Cache) flushPhaseCheap(writer Writer, target int, clearCb ClearFunc) bool {
	for {
		if !c.dirtyAboveTarget(target) {
			return false
		}

		c.mtx.Lock()
		pieces := c.snapshotByCheapToFlush()
		c.mtx.Unlock()

		progressed := false
		for _, pe := range pieces {
			if !c.dirtyAboveTarget(target) {
				return false
			}

			c.mtx.Lock()
			flushing := pe.flushing
			from := pe.flushedCursor
			count := pe.cheapToFlush()
			c.mtx.Unlock()

			if flushing || count <= 0 {
				continue
			}
			progressed = true
			if n := c.flushSpan(pe, from, count, writer, "cheap", clearCb); n < count {
				return true
			}
		}
		if !progressed {
			return false
		}
	}
}

// flushPhaseForced is Phase C, the last resort: it flushes whatever
// contiguous run of write-jobbed blocks sits at each piece's flushedCursor,
// whether or not the hasher has reached them yet.
func (c *Cache) flushPhaseForced(writer Writer, target int, clearCb ClearFunc) {
	c.mtx.Lock()
	pieces := c.snapshotByLocation()
	c.mtx.Unlock()

	for _, pe := range pieces {
		if !c.dirtyAboveTarget(target) {
			return
		}

		c.mtx.Lock()
		flushing := pe.flushing
		from := pe.flushedCursor
		count := contiguousJobRun(pe.blocks, from)
		c.mtx.Unlock()

		if flushing || count <= 0 {
			continue
		}
		if n := c.flushSpan(pe, from, count, writer, "forced", clearCb); n < count {
			return
		}
	}
}

// flushSpan pins pe flushing, offers blocks [from, from+count) to writer
// with the mutex released, then applies whichever blocks it actually set
// in out - the writer may persist a non-contiguous subset, so the apply
// loop walks out.Has(i) rather than assuming the first n blocks offered
// were the ones written. A flushed block that the hasher has already
// passed is fully released; one the hasher hasn't reached yet keeps its
// buffer, now held by bufHolder instead of a write job, so KickHasher can
// still read it. If a clear was parked on this piece while it was pinned,
// it runs now and clearCb is invoked outside the lock. Returns the number
// of blocks the writer reported writing.
func (c *Cache) flushSpan(pe *pieceEntry, from, count int, writer Writer, phase string, clearCb ClearFunc) int {
	c.mtx.Lock()
	if pe.flushing {
		c.mtx.Unlock()
		return 0
	}
	pe.flushing = true
	c.flushingBlocks += count
	c.metrics.setFlushing(c.flushingBlocks)

	views := make([]BlockView, count)
	for i := 0; i < count; i++ {
		blk := &pe.blocks[from+i]
		views[i] = BlockView{Buffer: blk.buf(), FlushedToDisk: blk.flushedToDisk}
	}
	hasherCursor := pe.hasherCursor
	c.mtx.Unlock()

	out := bittorrent.NewBitfield(uint32(count))
	n := writer(pe.location, from, out, views, hasherCursor)
	if n < 0 {
		n = 0
	}
	if n > count {
		n = count
	}
	// the writer's returned int is only the backpressure signal (§4.5); the
	// bitmap it set is the ground truth for which blocks actually landed,
	// since it may have persisted a non-contiguous subset.
	written := out.CountSet()
	if contig := int(out.FirstContiguousRun(0)); contig < written {
		log.Debugf("diskcache: %s flush of piece %v wrote %d blocks non-contiguously (leading run %d)", phase, pe.location, written, contig)
	}

	c.mtx.Lock()
	for i := 0; i < count; i++ {
		if !out.Has(uint32(i)) {
			continue
		}
		absIdx := from + i
		blk := &pe.blocks[absIdx]
		buf := blk.buf()
		blk.flushedToDisk = true
		blk.writeJob = nil
		if absIdx < pe.hasherCursor {
			blk.bufHolder = nil
		} else {
			blk.bufHolder = buf
		}
		c.dirtyBlocks--
	}
	pe.flushedCursor = computeFlushedCursor(pe.blocks)
	pe.readyToFlush = computeReadyToFlush(pe.blocks)
	c.flushingBlocks -= count
	pe.flushing = false
	c.metrics.setDirty(c.dirtyBlocks)
	c.metrics.setFlushing(c.flushingBlocks)
	c.metrics.addFlushed(phase, written)

	var aborted []*WriteJob
	parked := pe.clearPiece
	if parked != nil {
		pe.clearPiece = nil
		clearPieceImpl(pe, &c.dirtyBlocks, &aborted)
		c.metrics.setDirty(c.dirtyBlocks)
	}
	if c.Debug {
		c.checkInvariantLocked()
	}
	c.mtx.Unlock()

	if parked != nil {
		clearCb(aborted, parked)
	}
	return n
}

// contiguousJobRun returns the length of the contiguous run of blocks from
// index from that currently hold a live write job.
func contiguousJobRun(blocks []blockEntry, from int) int {
	n := 0
	for from+n < len(blocks) && blocks[from+n].writeJob != nil {
		n++
	}
	return n
}

// FlushStorage tears down every cached piece belonging to storageID: it
// offers each piece's dirty blocks to writer once, then removes the piece
// whether or not the writer took all of them and whether or not its hash
// was returned - mirroring the original source's flush_storage, whose
// piece_hash_returned guard is commented out. Any write job left over
// (because the writer fell short, or because the piece held blocks the
// writer was never offered) is aborted and handed to clearCb along with
// any clear job that was parked on the piece. A piece that another flush
// pass has pinned flushing at that moment is skipped and stays cached.
func (c *Cache) FlushStorage(writer Writer, storageID TorrentID, clearCb ClearFunc) {
	start := time.Now()
	defer c.metrics.observeFlush("flush_storage", start)

	c.mtx.Lock()
	locs := c.piecesForTorrent(storageID)
	c.mtx.Unlock()

	for _, loc := range locs {
		c.flushAndRemovePiece(loc, writer, clearCb)
	}
}

// flushAndRemovePiece offers every contiguous run of write-jobbed blocks
// starting at flushedCursor to writer, one run at a time (reusing
// flushSpan), then unconditionally tears the piece down. A non-contiguous
// gap - a block nobody ever wrote - simply stops the flush loop early;
// whatever never got flushed is aborted by finishStorageTeardown along
// with the rest of the piece's state.
func (c *Cache) flushAndRemovePiece(loc PieceLocation, writer Writer, clearCb ClearFunc) {
	for {
		c.mtx.Lock()
		pe, ok := c.pieces[loc]
		if !ok {
			c.mtx.Unlock()
			return
		}
		if pe.flushing {
			// a concurrent flush pass owns this piece right now; leave it
			// for the caller to retry once that pass finishes.
			c.mtx.Unlock()
			return
		}
		from := pe.flushedCursor
		count := contiguousJobRun(pe.blocks, from)
		c.mtx.Unlock()

		if count <= 0 {
			break
		}
		if n := c.flushSpan(pe, from, count, writer, "storage", clearCb); n < count {
			break
		}
	}

	c.mtx.Lock()
	pe, ok := c.pieces[loc]
	if !ok {
		c.mtx.Unlock()
		return
	}
	c.finishStorageTeardown(pe, loc, clearCb)
}

// finishStorageTeardown aborts any write jobs the piece still has (whether
// because nothing was flushed, or the writer fell short) and removes the
// piece from the cache unconditionally. Must be called with the mutex
// held; releases it before returning.
func (c *Cache) finishStorageTeardown(pe *pieceEntry, loc PieceLocation, clearCb ClearFunc) {
	var aborted []*WriteJob
	parked := pe.clearPiece
	pe.clearPiece = nil
	clearPieceImpl(pe, &c.dirtyBlocks, &aborted)
	c.metrics.setDirty(c.dirtyBlocks)

	delete(c.pieces, loc)
	if c.Debug {
		c.checkInvariantLocked()
	}
	c.mtx.Unlock()

	if len(aborted) > 0 || parked != nil {
		clearCb(aborted, parked)
	}
}
