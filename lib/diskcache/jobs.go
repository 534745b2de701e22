package diskcache

import (
	"github.com/google/uuid"
	"github.com/majestrate/xdcache/lib/bittorrent"
)

// WriteJob carries one block's worth of downloaded data into the cache.
// The cache takes custody of Buffer until the block has both been flushed
// and, if it's still needed for hashing, consumed by the hasher.
type WriteJob struct {
	ID         uuid.UUID
	Location   PieceLocation
	BlockIndex int
	Buffer     []byte

	// Storage is consulted only the first time a block lands in a piece
	// that isn't yet in the cache, to size the new pieceEntry. It mirrors
	// write_job->storage in the original source, which reaches the
	// storage handle through the job rather than a separate registration
	// step.
	Storage Storage
}

// NewWriteJob builds a WriteJob with a fresh correlation ID, mirroring
// khushveer007/tdm's pattern of stamping every unit of work with a uuid
// before it enters a worker pool.
func NewWriteJob(loc PieceLocation, blockIndex int, buf []byte, st Storage) *WriteJob {
	return &WriteJob{
		ID:         uuid.New(),
		Location:   loc,
		BlockIndex: blockIndex,
		Buffer:     buf,
		Storage:    st,
	}
}

// HashJob carries a request for a piece's hashes. PieceHash is filled in
// by the cache once the v1 SHA-1 context is final. BlockHashes, if
// non-nil, is filled in (bounded by its own length) with the v2 SHA-256
// block hashes.
type HashJob struct {
	ID          uuid.UUID
	Location    PieceLocation
	PieceHash   [20]byte
	BlockHashes [][32]byte
}

// NewHashJob builds a HashJob with a fresh correlation ID. blockHashLen
// sizes the BlockHashes output slice for v2 pieces; pass 0 for v1-only
// torrents.
func NewHashJob(loc PieceLocation, blockHashLen int) *HashJob {
	j := &HashJob{
		ID:       uuid.New(),
		Location: loc,
	}
	if blockHashLen > 0 {
		j.BlockHashes = make([][32]byte, blockHashLen)
	}
	return j
}

// ClearJob carries a request to discard a piece's cached state, typically
// issued after the piece has failed its post-download hash check.
type ClearJob struct {
	ID       uuid.UUID
	Location PieceLocation
}

// NewClearJob builds a ClearJob with a fresh correlation ID.
func NewClearJob(loc PieceLocation) *ClearJob {
	return &ClearJob{
		ID:       uuid.New(),
		Location: loc,
	}
}

// Storage is the torrent-metadata handle the cache consults on first
// insert to size a new piece. It is an external collaborator: the cache
// never reads a .torrent file itself.
type Storage interface {
	// PieceSize returns the length, in bytes, of the piece at idx.
	PieceSize(idx uint32) int
	// BlockSize returns the block size used to split the piece at idx.
	// Per the REDESIGN FLAGS in SPEC_FULL.md, the cache asks the storage
	// handle instead of assuming DefaultBlockSize, so pieces smaller than
	// one default block still get a correct block count.
	BlockSize(idx uint32) int
	// V1 reports whether this torrent needs the whole-piece SHA-1 hash.
	V1() bool
	// V2 reports whether this torrent needs per-block SHA-256 hashes.
	V2() bool
}

// BlockView is the read-only view of one block handed to a Writer.
type BlockView struct {
	Buffer        []byte
	FlushedToDisk bool
}

// Writer persists the blocks a flush pass hands it. loc and startBlock
// locate the span within its piece and torrent, so an implementation can
// compute the right file offsets; blocks is that span (possibly a
// subspan of a piece starting at some cursor, not necessarily block 0);
// hashCursor is the absolute index, within the whole piece, up to which
// hashing has already progressed - a Writer can use that to decide it's
// safe to skip read-back for those positions. The Writer must set bit i
// in out for every blocks[i] it successfully persisted, and return the
// number of blocks it wrote. A short count (less than len(blocks))
// signals backpressure and ends the whole flush_to_disk call.
type Writer func(loc PieceLocation, startBlock int, out *bittorrent.Bitfield, blocks []BlockView, hashCursor int) int

// ClearFunc is handed the write jobs that were aborted by a clear, plus
// the clear job itself, so the caller can fail the aborted jobs with a
// cancellation status and complete the clear job. It is invoked after the
// cache has already updated its own state, and is allowed to re-enter the
// cache.
type ClearFunc func(aborted []*WriteJob, parked *ClearJob)
