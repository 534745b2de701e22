package diskcache

import (
	"crypto/sha1"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/majestrate/xdcache/lib/bittorrent"
)

const testBlockSize = 16 * 1024

// S1: insert blocks 0..3 in order, kicking the hasher after each. The
// hasher should advance in lockstep and the final SHA-1 should match the
// concatenation of all four buffers.
func TestScenarioS1_InsertInOrder(t *testing.T) {
	c := NewCache(nil)
	c.Debug = true
	st := &fakeStorage{pieceSize: 4 * testBlockSize, blockSize: testBlockSize, v1: true}
	loc := PieceLocation{Torrent: 0, Piece: 0}
	blocks := makeBlocks(4, testBlockSize)

	var completed []*HashJob
	for i, buf := range blocks {
		insertAndKick(c, loc, i, buf, st, &completed)
	}

	pe := c.pieces[loc]
	require.Equal(t, 4, pe.hasherCursor)
	require.True(t, pe.readyToFlush)

	want := sha1.New()
	for _, b := range blocks {
		want.Write(b)
	}

	hj := NewHashJob(loc, 0)
	require.Equal(t, JobCompleted, c.TryHashPiece(loc, hj))
	require.Equal(t, mustSum20(want), hj.PieceHash)
}

// S2: insert out of order (1,0,3,2). KickHasher only advances once the
// missing prefix block lands; the final hash must match S1.
func TestScenarioS2_InsertOutOfOrder(t *testing.T) {
	c := NewCache(nil)
	c.Debug = true
	st := &fakeStorage{pieceSize: 4 * testBlockSize, blockSize: testBlockSize, v1: true}
	loc := PieceLocation{Torrent: 0, Piece: 0}
	blocks := makeBlocks(4, testBlockSize)

	var completed []*HashJob

	// block 1 arrives first: no kick (idx != 0, not ready).
	job1 := NewWriteJob(loc, 1, blocks[1], st)
	kick := c.Insert(loc, 1, job1)
	require.False(t, kick)
	pe := c.pieces[loc]
	require.Equal(t, 0, pe.hasherCursor)

	// block 0 arrives: kicks, and since block 1 is already resident the
	// cursor advances past both, to 2.
	insertAndKick(c, loc, 0, blocks[0], st, &completed)
	require.Equal(t, 2, pe.hasherCursor)

	// block 3 arrives: no advance yet, block 2 still missing.
	job3 := NewWriteJob(loc, 3, blocks[3], st)
	kick = c.Insert(loc, 3, job3)
	require.False(t, kick)
	require.Equal(t, 2, pe.hasherCursor)

	// block 2 arrives: piece becomes ready_to_flush, kicks, cursor runs to 4.
	insertAndKick(c, loc, 2, blocks[2], st, &completed)
	require.Equal(t, 4, pe.hasherCursor)
	require.True(t, pe.readyToFlush)

	want := sha1.New()
	for _, b := range blocks {
		want.Write(b)
	}
	hj := NewHashJob(loc, 0)
	require.Equal(t, JobCompleted, c.TryHashPiece(loc, hj))
	require.Equal(t, mustSum20(want), hj.PieceHash)
}

// S3: v2-only piece. Block hashes must equal SHA-256 of each block; the
// piece doesn't need its v1 hash delivered since v1Hashes is false.
func TestScenarioS3_V2BlockHashes(t *testing.T) {
	c := NewCache(nil)
	c.Debug = true
	st := &fakeStorage{pieceSize: 4 * testBlockSize, blockSize: testBlockSize, v2: true}
	loc := PieceLocation{Torrent: 0, Piece: 0}
	blocks := makeBlocks(4, testBlockSize)

	var completed []*HashJob
	for i, buf := range blocks {
		insertAndKick(c, loc, i, buf, st, &completed)
	}

	pe := c.pieces[loc]
	require.Equal(t, 4, pe.hasherCursor)
	for i, buf := range blocks {
		require.Equal(t, sha256.Sum256(buf), pe.blocks[i].blockHash)
	}
}

// S4: full piece flushed in one Writer call. dirtyBlocks drops by 4, every
// block is flushedToDisk, and once the hash was already returned the piece
// is erased from the container.
func TestScenarioS4_FullFlushErasesCompletedPiece(t *testing.T) {
	c := NewCache(nil)
	c.Debug = true
	st := &fakeStorage{pieceSize: 4 * testBlockSize, blockSize: testBlockSize, v1: true}
	loc := PieceLocation{Torrent: 0, Piece: 0}
	blocks := makeBlocks(4, testBlockSize)

	var completed []*HashJob
	for i, buf := range blocks {
		insertAndKick(c, loc, i, buf, st, &completed)
	}
	require.Equal(t, 4, c.Size())

	hj := NewHashJob(loc, 0)
	require.Equal(t, JobCompleted, c.TryHashPiece(loc, hj))

	writer := func(loc PieceLocation, startBlock int, out *bittorrent.Bitfield, blks []BlockView, hashCursor int) int {
		for i := range blks {
			out.Set(uint32(i))
		}
		return len(blks)
	}
	c.FlushToDisk(writer, 0, noopClear)

	require.Equal(t, 0, c.Size())
	_, stillPresent := c.pieces[loc]
	require.False(t, stillPresent, "piece with hash already returned should be erased once fully flushed")
}

// S5: 3 of 4 blocks inserted, hasherCursor=3 (not ready - block 3 missing).
// FlushToDisk(target=0) can't run Phase A (not ready), so Phase B flushes
// the cheap run of 3 already-hashed blocks.
func TestScenarioS5_PartialFlushPhaseB(t *testing.T) {
	c := NewCache(nil)
	c.Debug = true
	st := &fakeStorage{pieceSize: 4 * testBlockSize, blockSize: testBlockSize, v1: true}
	loc := PieceLocation{Torrent: 0, Piece: 0}
	blocks := makeBlocks(4, testBlockSize)

	var completed []*HashJob
	for i := 0; i < 3; i++ {
		insertAndKick(c, loc, i, blocks[i], st, &completed)
	}

	pe := c.pieces[loc]
	require.Equal(t, 3, pe.hasherCursor)
	require.False(t, pe.readyToFlush)

	writer := func(loc PieceLocation, startBlock int, out *bittorrent.Bitfield, blks []BlockView, hashCursor int) int {
		for i := range blks {
			out.Set(uint32(i))
		}
		return len(blks)
	}
	c.FlushToDisk(writer, 0, noopClear)

	require.Equal(t, 3, pe.flushedCursor)
	require.Equal(t, 0, c.Size())
}

// S6: a clear requested while the piece is mid-flush is parked, not run
// immediately; once the flush pass finishes, clearCb is invoked with the
// parked job (and no aborted jobs, since nothing was pending-write).
func TestScenarioS6_ClearParkedDuringFlush(t *testing.T) {
	c := NewCache(nil)
	c.Debug = true
	st := &fakeStorage{pieceSize: 4 * testBlockSize, blockSize: testBlockSize, v1: true}
	loc := PieceLocation{Torrent: 0, Piece: 0}
	blocks := makeBlocks(4, testBlockSize)

	var completed []*HashJob
	for i, buf := range blocks {
		insertAndKick(c, loc, i, buf, st, &completed)
	}

	clearJob := NewClearJob(loc)
	pe := c.pieces[loc]

	var sawAborted []*WriteJob
	var sawParked *ClearJob
	writer := func(loc PieceLocation, startBlock int, out *bittorrent.Bitfield, blks []BlockView, hashCursor int) int {
		// the piece is pinned flushing=true right now; try_clear_piece must
		// park rather than clear in place.
		require.True(t, pe.flushing)
		ok := c.TryClearPiece(loc, clearJob)
		require.False(t, ok)
		for i := range blks {
			out.Set(uint32(i))
		}
		return len(blks)
	}
	clearCb := func(aborted []*WriteJob, parked *ClearJob) {
		sawAborted = aborted
		sawParked = parked
	}

	c.FlushToDisk(writer, 0, clearCb)

	require.Nil(t, sawAborted)
	require.Equal(t, clearJob, sawParked)
}

func noopClear(aborted []*WriteJob, parked *ClearJob) {}

func mustSum20(h interface{ Sum([]byte) []byte }) [20]byte {
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}
