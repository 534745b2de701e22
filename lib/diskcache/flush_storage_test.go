package diskcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/majestrate/xdcache/lib/bittorrent"
)

func TestFlushStorageFlushesAndRemovesAllPiecesOfTorrent(t *testing.T) {
	c := NewCache(nil)
	c.Debug = true
	st := &fakeStorage{pieceSize: 2 * testBlockSize, blockSize: testBlockSize, v1: true}
	tid := TorrentID(7)

	var completed []*HashJob
	for p := uint32(0); p < 3; p++ {
		loc := PieceLocation{Torrent: tid, Piece: p}
		blocks := makeBlocks(2, testBlockSize)
		for i, buf := range blocks {
			insertAndKick(c, loc, i, buf, st, &completed)
		}
	}
	require.Equal(t, 6, c.Size())

	var written int
	writer := func(loc PieceLocation, startBlock int, out *bittorrent.Bitfield, blks []BlockView, hashCursor int) int {
		for i := range blks {
			out.Set(uint32(i))
		}
		written += len(blks)
		return len(blks)
	}
	clearCb := func(aborted []*WriteJob, parked *ClearJob) {}

	c.FlushStorage(writer, tid, clearCb)

	require.Equal(t, 6, written)
	require.Equal(t, 0, c.Size())
	for p := uint32(0); p < 3; p++ {
		loc := PieceLocation{Torrent: tid, Piece: p}
		_, ok := c.pieces[loc]
		require.False(t, ok, "piece %d should have been removed", p)
	}
}

func TestFlushStorageAbortsUnflushedAndLeavesOtherTorrentsAlone(t *testing.T) {
	c := NewCache(nil)
	c.Debug = true
	st := &fakeStorage{pieceSize: 2 * testBlockSize, blockSize: testBlockSize, v1: true}

	tidA, tidB := TorrentID(1), TorrentID(2)
	locA := PieceLocation{Torrent: tidA, Piece: 0}
	locB := PieceLocation{Torrent: tidB, Piece: 0}
	buf := makeBlocks(1, testBlockSize)[0]

	// torrent A: block 0 present, block 1 never arrives.
	c.Insert(locA, 0, NewWriteJob(locA, 0, buf, st))
	// torrent B: independent piece, should be untouched.
	c.Insert(locB, 0, NewWriteJob(locB, 0, buf, st))

	var aborted []*WriteJob
	writer := func(loc PieceLocation, startBlock int, out *bittorrent.Bitfield, blks []BlockView, hashCursor int) int {
		// simulate a writer that can't persist anything right now.
		return 0
	}
	clearCb := func(ab []*WriteJob, parked *ClearJob) { aborted = append(aborted, ab...) }

	c.FlushStorage(writer, tidA, clearCb)

	require.Len(t, aborted, 1)
	require.Equal(t, locA, aborted[0].Location)
	_, okA := c.pieces[locA]
	require.False(t, okA)

	_, okB := c.pieces[locB]
	require.True(t, okB, "torrent B's piece must survive flush_storage on torrent A")
	require.Equal(t, 1, c.Size())
}
