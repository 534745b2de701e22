package diskcache

// Get invokes fn with the bytes of block idx of loc if it's resident, and
// returns true. Returns false if the piece or block isn't resident - this
// is the cache's only read path, and it only ever serves blocks that
// happen to still be around because they're dirty or pending-hash (see
// SPEC_FULL.md Non-goals: there is no general read cache).
func (c *Cache) Get(loc PieceLocation, idx int, fn func(buf []byte)) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	pe, ok := c.pieces[loc]
	if !ok {
		return false
	}
	buf := pe.blocks[idx].buf()
	if buf == nil {
		return false
	}
	fn(buf)
	return true
}

// Get2 invokes fn with the bytes of blocks idx and idx+1 of loc (either
// may be nil if not resident) and returns fn's result, or 0 if neither
// block is resident.
func (c *Cache) Get2(loc PieceLocation, idx int, fn func(buf1, buf2 []byte) int) int {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	pe, ok := c.pieces[loc]
	if !ok {
		return 0
	}
	buf1 := pe.blocks[idx].buf()
	buf2 := pe.blocks[idx+1].buf()
	if buf1 == nil && buf2 == nil {
		return 0
	}
	return fn(buf1, buf2)
}

// Hash2 returns the v2 SHA-256 hash of block idx of loc: the cached
// per-block hash if the hasher has already passed it, a freshly computed
// hash if the block is resident but not yet hashed, or fallback()'s
// result if neither.
//
// If the piece is currently hashing, Hash2 releases the lock and calls
// fallback() immediately without re-checking cache state - matching the
// original source exactly (SPEC_FULL.md "SUPPLEMENTED FEATURES"):
// fallback must not call back into this Cache.
func (c *Cache) Hash2(loc PieceLocation, idx int, fallback func() [32]byte) [32]byte {
	c.mtx.Lock()

	pe, ok := c.pieces[loc]
	if ok {
		if pe.hashing {
			c.mtx.Unlock()
			return fallback()
		}
		blk := &pe.blocks[idx]
		if idx < pe.hasherCursor {
			h := blk.blockHash
			c.mtx.Unlock()
			return h
		}
		if buf := blk.buf(); buf != nil {
			h := blockHash256(buf)
			c.mtx.Unlock()
			return h
		}
	}
	c.mtx.Unlock()
	return fallback()
}
