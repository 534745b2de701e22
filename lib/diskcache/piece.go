package diskcache

import (
	"crypto/sha1"
	"crypto/sha256"
	"hash"
)

// DefaultBlockSize is the fallback block size. It is only used if a
// Storage implementation doesn't report its own (see REDESIGN FLAGS in
// SPEC_FULL.md: the original source derives blocks_in_piece from this
// constant directly, which is wrong for sub-16KiB pieces; Insert instead
// asks the Storage handle).
const DefaultBlockSize = 16 * 1024

// blockEntry is one block-sized slot inside a pieceEntry. It holds exactly
// one of: a pending write job owning a buffer, or a buffer retained after
// flush (bufHolder) until hashing has also consumed it, or nothing.
type blockEntry struct {
	writeJob      *WriteJob
	bufHolder     []byte
	flushedToDisk bool
	// blockHash is only meaningful for v2 pieces.
	blockHash [32]byte
}

// buf returns the bytes currently backing this block, regardless of
// whether they live in a pending write job or a retained buffer. Returns
// nil if the block isn't resident.
func (b *blockEntry) buf() []byte {
	if b.bufHolder != nil {
		return b.bufHolder
	}
	if b.writeJob != nil {
		return b.writeJob.Buffer
	}
	return nil
}

// pieceEntry is one piece's worth of cache state: its blocks, hashing
// progress, flush progress, and pin flags.
type pieceEntry struct {
	location      PieceLocation
	blocksInPiece int
	blocks        []blockEntry

	v1Hashes bool
	v2Hashes bool

	// ph is the streaming SHA-1 context for the v1 piece hash. Blocks are
	// folded into it strictly in index order as hasherCursor advances.
	ph hash.Hash

	// hasherCursor: count of contiguous blocks from 0 already folded into
	// ph (and, for v2, whose blockHash has been computed).
	hasherCursor int
	// flushedCursor: count of contiguous blocks from 0 durably on disk.
	flushedCursor int

	hashing  bool
	flushing bool

	// readyToFlush is true iff every block has either a pending write job
	// or is already flushed - i.e. there's no gap.
	readyToFlush bool

	// piece_hash_returned: the final SHA-1 has already been delivered to
	// a client via TryHashPiece or KickHasher's deferred completion.
	pieceHashReturned bool

	// hashJob is a deferred hash-piece job to complete when hasherCursor
	// reaches blocksInPiece. At most one at a time.
	hashJob *HashJob

	// clearPiece is a deferred clear job to run once this piece unpins
	// from flushing.
	clearPiece *ClearJob
}

func newPieceEntry(loc PieceLocation, blocksInPiece int, v1, v2 bool) *pieceEntry {
	return &pieceEntry{
		location:      loc,
		blocksInPiece: blocksInPiece,
		blocks:        make([]blockEntry, blocksInPiece),
		v1Hashes:      v1,
		v2Hashes:      v2,
		ph:            sha1.New(),
	}
}

// cheapToFlush is the contiguous run that can be flushed without later
// read-back: blocks already hashed but not yet flushed.
func (p *pieceEntry) cheapToFlush() int {
	return p.hasherCursor - p.flushedCursor
}

// computeReadyToFlush reports whether every block in blocks has either a
// live write job or is already flushed to disk - no gaps.
func computeReadyToFlush(blocks []blockEntry) bool {
	for i := range blocks {
		if blocks[i].writeJob == nil && !blocks[i].flushedToDisk {
			return false
		}
	}
	return true
}

// computeFlushedCursor returns the number of contiguous blocks from the
// start of blocks that are flushed to disk.
func computeFlushedCursor(blocks []blockEntry) int {
	n := 0
	for i := range blocks {
		if !blocks[i].flushedToDisk {
			return n
		}
		n++
	}
	return n
}

// countJobs returns how many blocks in blocks currently hold a live write
// job.
func countJobs(blocks []blockEntry) int {
	n := 0
	for i := range blocks {
		if blocks[i].writeJob != nil {
			n++
		}
	}
	return n
}

// haveBuffers reports whether every block in blocks is currently resident
// (has a buffer, from either a write job or a retained holder).
func haveBuffers(blocks []blockEntry) bool {
	for i := range blocks {
		if blocks[i].buf() == nil {
			return false
		}
	}
	return true
}

func blockHash256(buf []byte) [32]byte {
	return sha256.Sum256(buf)
}
