package diskcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTryClearPieceAbortsPendingWrites(t *testing.T) {
	c := NewCache(nil)
	st := &fakeStorage{pieceSize: 2 * testBlockSize, blockSize: testBlockSize, v1: true}
	loc := PieceLocation{Torrent: 1, Piece: 5}
	buf := makeBlocks(1, testBlockSize)[0]
	c.Insert(loc, 0, NewWriteJob(loc, 0, buf, st))
	require.Equal(t, 1, c.Size())

	job := NewClearJob(loc)
	ok := c.TryClearPiece(loc, job)
	require.True(t, ok)
	require.Equal(t, 0, c.Size())

	pe := c.pieces[loc]
	require.Equal(t, 0, pe.hasherCursor)
	require.Equal(t, 0, pe.flushedCursor)
	require.False(t, pe.readyToFlush)
	require.False(t, pe.pieceHashReturned)
	require.Nil(t, pe.blocks[0].writeJob)
}

func TestTryClearPieceAbsentPieceCompletesImmediately(t *testing.T) {
	c := NewCache(nil)
	loc := PieceLocation{Torrent: 1, Piece: 5}
	ok := c.TryClearPiece(loc, NewClearJob(loc))
	require.True(t, ok)
}

func TestTryClearPiecePanicsWhileHashing(t *testing.T) {
	c := NewCache(nil)
	st := &fakeStorage{pieceSize: testBlockSize, blockSize: testBlockSize, v1: true}
	loc := PieceLocation{Torrent: 1, Piece: 5}
	buf := makeBlocks(1, testBlockSize)[0]
	c.Insert(loc, 0, NewWriteJob(loc, 0, buf, st))

	pe := c.pieces[loc]
	c.mtx.Lock()
	pe.hashing = true
	c.mtx.Unlock()

	require.Panics(t, func() {
		c.TryClearPiece(loc, NewClearJob(loc))
	})
}
