package diskcache

import "fmt"

// checkInvariantLocked walks every piece and re-derives the bookkeeping
// fields from the blocks themselves, panicking on the first mismatch. It
// mirrors the C++ source's check_invariant(), normally compiled only
// under TORRENT_USE_INVARIANT_CHECKS; here it is always compiled but only
// ever called when Cache.Debug is set, so production callers pay nothing
// for it. Must be called with the mutex held.
func (c *Cache) checkInvariantLocked() {
	wantDirty := 0
	for loc, pe := range c.pieces {
		if pe.location != loc {
			panic(fmt.Sprintf("diskcache: invariant: piece stored at %v has location %v", loc, pe.location))
		}
		if len(pe.blocks) != pe.blocksInPiece {
			panic(fmt.Sprintf("diskcache: invariant: %v blocksInPiece=%d but len(blocks)=%d", loc, pe.blocksInPiece, len(pe.blocks)))
		}

		for i := range pe.blocks {
			blk := &pe.blocks[i]
			if blk.writeJob != nil && blk.flushedToDisk {
				panic(fmt.Sprintf("diskcache: invariant: %v block %d has both a write job and flushedToDisk", loc, i))
			}
			if blk.writeJob != nil {
				wantDirty++
			}
		}

		if got := computeFlushedCursor(pe.blocks); got != pe.flushedCursor {
			panic(fmt.Sprintf("diskcache: invariant: %v flushedCursor=%d but computed=%d", loc, pe.flushedCursor, got))
		}
		if pe.flushedCursor > pe.blocksInPiece {
			panic(fmt.Sprintf("diskcache: invariant: %v flushedCursor=%d exceeds blocksInPiece=%d", loc, pe.flushedCursor, pe.blocksInPiece))
		}
		if pe.hasherCursor > pe.blocksInPiece {
			panic(fmt.Sprintf("diskcache: invariant: %v hasherCursor=%d exceeds blocksInPiece=%d", loc, pe.hasherCursor, pe.blocksInPiece))
		}
		// every block behind the hasher cursor must still be resident, since
		// nothing releases a buffer until both the hasher and the flusher
		// have passed it.
		for i := 0; i < pe.hasherCursor; i++ {
			if !pe.blocks[i].flushedToDisk && pe.blocks[i].buf() == nil {
				panic(fmt.Sprintf("diskcache: invariant: %v block %d is behind hasherCursor but neither flushed nor resident", loc, i))
			}
		}

		if got := computeReadyToFlush(pe.blocks); got != pe.readyToFlush {
			panic(fmt.Sprintf("diskcache: invariant: %v readyToFlush=%v but computed=%v", loc, pe.readyToFlush, got))
		}
		if pe.pieceHashReturned && pe.hasherCursor != pe.blocksInPiece {
			panic(fmt.Sprintf("diskcache: invariant: %v pieceHashReturned but hasherCursor=%d/%d", loc, pe.hasherCursor, pe.blocksInPiece))
		}
		if pe.hashJob != nil && pe.pieceHashReturned {
			panic(fmt.Sprintf("diskcache: invariant: %v has a hashJob pinned after its hash was already returned", loc))
		}
		if pe.clearPiece != nil && !pe.flushing {
			panic(fmt.Sprintf("diskcache: invariant: %v has a clear job parked but isn't flushing", loc))
		}
	}

	if wantDirty != c.dirtyBlocks {
		panic(fmt.Sprintf("diskcache: invariant: dirtyBlocks=%d but computed=%d", c.dirtyBlocks, wantDirty))
	}
	if c.flushingBlocks < 0 {
		panic(fmt.Sprintf("diskcache: invariant: flushingBlocks=%d is negative", c.flushingBlocks))
	}
}
