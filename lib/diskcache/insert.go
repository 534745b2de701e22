package diskcache

// Insert inserts a write job's buffer into the given block slot,
// materializing the piece's entry on first use. The slot must be empty
// and idx must not be below either cursor - violating that is a
// programmer error, not a runtime condition, so it panics rather than
// returning an error (see SPEC_FULL.md §7).
//
// It returns true if the caller should kick the hasher for this piece:
// either this was block 0 (which unblocks hashing starting at the
// beginning) or the piece just became ready_to_flush.
func (c *Cache) Insert(loc PieceLocation, idx int, job *WriteJob) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	pe, ok := c.pieces[loc]
	if !ok {
		pe = c.newPieceLocked(loc, job.Storage)
		c.pieces[loc] = pe
	}

	blk := &pe.blocks[idx]
	if blk.writeJob != nil || blk.bufHolder != nil || blk.flushedToDisk {
		panic("diskcache: insert into an occupied block slot")
	}
	if idx < pe.flushedCursor || idx < pe.hasherCursor {
		panic("diskcache: insert below flushed/hasher cursor")
	}

	blk.writeJob = job
	c.dirtyBlocks++
	c.metrics.setDirty(c.dirtyBlocks)

	readyToFlush := computeReadyToFlush(pe.blocks)
	if readyToFlush != pe.readyToFlush {
		pe.readyToFlush = readyToFlush
	}

	if c.Debug {
		c.checkInvariantLocked()
	}

	return idx == 0 || readyToFlush
}

// newPieceLocked materializes a new pieceEntry for loc, asking st for the
// piece's size and block size rather than assuming DefaultBlockSize (see
// REDESIGN FLAGS in SPEC_FULL.md). Must be called with the mutex held.
func (c *Cache) newPieceLocked(loc PieceLocation, st Storage) *pieceEntry {
	pieceSize := st.PieceSize(loc.Piece)
	blockSize := st.BlockSize(loc.Piece)
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	blocksInPiece := (pieceSize + blockSize - 1) / blockSize
	if blocksInPiece < 1 {
		blocksInPiece = 1
	}
	return newPieceEntry(loc, blocksInPiece, st.V1(), st.V2())
}
