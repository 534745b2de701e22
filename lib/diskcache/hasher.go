package diskcache

import "hash"

// HashResult is the tri-state outcome of TryHashPiece.
type HashResult int

const (
	// JobCompleted means the final hash was written into the job
	// immediately; the caller should post it to its completion queue.
	JobCompleted HashResult = iota
	// JobQueued means the piece is still hashing; the hasher thread will
	// post the job once it reaches the end.
	JobQueued
	// PostJob means the piece isn't fully cached; the caller must read
	// it back from disk itself.
	PostJob
)

// HashPiece invokes fn with the piece's streaming SHA-1 context, its
// current hasherCursor, a block-pointer span, and (for v2 pieces) the
// per-block hash slice, with the piece pinned hashing=true for the
// duration. Returns false if the piece isn't in the cache.
func (c *Cache) HashPiece(loc PieceLocation, fn func(ph hash.Hash, hasherCursor int, blocks [][]byte, v2Hashes [][32]byte)) bool {
	c.mtx.Lock()

	pe, ok := c.pieces[loc]
	if !ok {
		c.mtx.Unlock()
		return false
	}

	blocks := make([][]byte, pe.blocksInPiece)
	v2Hashes := make([][32]byte, pe.blocksInPiece)
	for i := range pe.blocks {
		blocks[i] = pe.blocks[i].buf()
		v2Hashes[i] = pe.blocks[i].blockHash
	}
	pe.hashing = true
	hasherCursor := pe.hasherCursor
	c.mtx.Unlock()

	fn(pe.ph, hasherCursor, blocks, v2Hashes)

	c.mtx.Lock()
	pe.hashing = false
	c.mtx.Unlock()
	return true
}

// TryHashPiece asks for a piece's final hash. If hashing has already
// completed, the hash is written into hashJob immediately (JobCompleted).
// If hashing is still in progress and every remaining block is resident,
// the job is hung on the piece for KickHasher to complete (JobQueued).
// Otherwise the caller must read the piece back itself (PostJob).
func (c *Cache) TryHashPiece(loc PieceLocation, hashJob *HashJob) HashResult {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	pe, ok := c.pieces[loc]
	if !ok {
		return PostJob
	}

	if pe.pieceHashReturned {
		panic("diskcache: re-requesting a piece hash that was already returned")
	}

	if !pe.hashing && pe.hasherCursor == pe.blocksInPiece {
		pe.pieceHashReturned = true
		hashJob.PieceHash = finalSHA1(pe.ph)
		copyBlockHashes(hashJob, pe)
		c.metrics.incCompleted()
		if c.Debug {
			c.checkInvariantLocked()
		}
		return JobCompleted
	}

	if pe.hashing && pe.hasherCursor < pe.blocksInPiece && haveBuffers(pe.blocks[pe.hasherCursor:]) {
		if pe.hashJob != nil {
			panic("diskcache: simultaneous hash request on the same piece")
		}
		pe.hashJob = hashJob
		return JobQueued
	}

	return PostJob
}

// KickHasher advances hasherCursor as far as the maximal contiguous run
// of resident blocks allows, folding v1 bytes into the piece's streaming
// SHA-1 and computing v2 per-block SHA-256 as it goes. It is a
// convergent loop: if another block lands at the new cursor while the
// mutex was released for hashing, it keeps going. On reaching the end of
// the piece with a hash job hung on it, it finalizes the hash and posts
// the job onto completed.
func (c *Cache) KickHasher(loc PieceLocation, completed *[]*HashJob) {
	c.mtx.Lock()

	pe, ok := c.pieces[loc]
	if !ok {
		c.mtx.Unlock()
		return
	}
	if pe.hashing {
		// some other thread beat us to it
		c.mtx.Unlock()
		return
	}

	for {
		cursor := pe.hasherCursor
		end := cursor
		for end < pe.blocksInPiece && pe.blocks[end].buf() != nil {
			end++
		}
		run := end - cursor
		if run == 0 {
			break
		}

		bufs := make([][]byte, run)
		for i := 0; i < run; i++ {
			bufs[i] = pe.blocks[cursor+i].buf()
		}

		pe.hashing = true
		needV1 := pe.v1Hashes
		needV2 := pe.v2Hashes
		ph := pe.ph
		c.mtx.Unlock()

		for i, buf := range bufs {
			if needV1 {
				ph.Write(buf)
			}
			if needV2 {
				pe.blocks[cursor+i].blockHash = blockHash256(buf)
			}
		}

		c.mtx.Lock()
		for i := cursor; i < cursor+run; i++ {
			blk := &pe.blocks[i]
			if blk.bufHolder != nil && blk.flushedToDisk {
				blk.bufHolder = nil
			}
		}
		pe.hasherCursor = cursor + run
		pe.hashing = false
		c.metrics.addHashed(run)

		if pe.hasherCursor != pe.blocksInPiece {
			if pe.blocks[pe.hasherCursor].buf() != nil {
				// another block landed at the new cursor while we were
				// unlocked; keep folding.
				continue
			}
		}
		break
	}

	if pe.hashJob == nil || pe.hasherCursor != pe.blocksInPiece {
		if c.Debug {
			c.checkInvariantLocked()
		}
		c.mtx.Unlock()
		return
	}

	j := pe.hashJob
	pe.hashJob = nil
	pe.readyToFlush = computeReadyToFlush(pe.blocks)
	pe.pieceHashReturned = true
	j.PieceHash = finalSHA1(pe.ph)
	copyBlockHashes(j, pe)
	c.metrics.incCompleted()
	if c.Debug {
		c.checkInvariantLocked()
	}
	c.mtx.Unlock()

	*completed = append(*completed, j)
}

// finalSHA1 reads the digest out of a streaming sha1.Hash without
// resetting it - callers only ever call this once per piece, once
// hasherCursor has reached blocksInPiece.
func finalSHA1(ph hash.Hash) [20]byte {
	var out [20]byte
	copy(out[:], ph.Sum(nil))
	return out
}

func copyBlockHashes(j *HashJob, pe *pieceEntry) {
	if len(j.BlockHashes) == 0 {
		return
	}
	n := pe.blocksInPiece
	if len(j.BlockHashes) < n {
		n = len(j.BlockHashes)
	}
	for i := 0; i < n; i++ {
		j.BlockHashes[i] = pe.blocks[i].blockHash
	}
}
