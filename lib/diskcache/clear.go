package diskcache

// TryClearPiece discards a piece's cached state after it has failed its
// post-download hash check. If the piece is currently flushing, the
// clear job is parked on the piece and TryClearPiece returns false; the
// flush driver runs it once that flush pass finishes and this piece
// unpins. Clearing while hashing is asserted impossible by protocol:
// consumers only clear after hashing has already reported a mismatch.
//
// If the piece isn't in the cache at all, there's nothing to clear and
// the job should be posted complete immediately (true).
func (c *Cache) TryClearPiece(loc PieceLocation, job *ClearJob) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	pe, ok := c.pieces[loc]
	if !ok {
		return true
	}

	if pe.flushing {
		pe.clearPiece = job
		if c.Debug {
			c.checkInvariantLocked()
		}
		return false
	}
	if pe.hashing {
		panic("diskcache: clearing a piece that is still hashing")
	}

	var aborted []*WriteJob
	clearPieceImpl(pe, &c.dirtyBlocks, &aborted)
	c.metrics.setDirty(c.dirtyBlocks)
	if c.Debug {
		c.checkInvariantLocked()
	}
	return true
}

// clearPieceImpl resets a piece to its just-materialized state: every
// block with a live write job is moved into aborted and the dirty-block
// counter decremented; every buffer is released; cursors, readyToFlush,
// pieceHashReturned, and the SHA-1 context are reset. Must be called with
// the mutex held, and only on a piece that is neither hashing nor
// flushing.
func clearPieceImpl(pe *pieceEntry, dirtyBlocks *int, aborted *[]*WriteJob) {
	for i := range pe.blocks {
		blk := &pe.blocks[i]
		if blk.writeJob != nil {
			*aborted = append(*aborted, blk.writeJob)
			blk.writeJob = nil
			*dirtyBlocks--
		}
		blk.flushedToDisk = false
		blk.bufHolder = nil
	}
	pe.readyToFlush = false
	pe.pieceHashReturned = false
	pe.hasherCursor = 0
	pe.flushedCursor = 0
	pe.ph.Reset()
}
