package diskcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/majestrate/xdcache/lib/bittorrent"
)

// TestConcurrentInsertHashFlushConverges drives many pieces through
// concurrent insert/kick_hasher/flush_to_disk goroutines - insert-side
// workers, a hasher pool and a flusher, fanned out over errgroup the way
// khushveer007-tdm's chunk workers are - and checks that once they settle
// the structural properties hold and no dirty block is left.
func TestConcurrentInsertHashFlushConverges(t *testing.T) {
	c := NewCache(nil)
	c.Debug = true

	const numPieces = 8
	const blocksPerPiece = 4
	st := &fakeStorage{pieceSize: blocksPerPiece * testBlockSize, blockSize: testBlockSize, v1: true, v2: true}

	locs := make([]PieceLocation, numPieces)
	blockData := make([][][]byte, numPieces)
	for i := range locs {
		locs[i] = PieceLocation{Torrent: 3, Piece: uint32(i)}
		blockData[i] = makeBlocks(blocksPerPiece, testBlockSize)
	}

	g, ctx := errgroup.WithContext(context.Background())

	// insert-side goroutines: one per piece, inserting blocks out of order.
	for i, loc := range locs {
		loc := loc
		blocks := blockData[i]
		g.Go(func() error {
			order := []int{2, 0, 3, 1}
			for _, idx := range order {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				job := NewWriteJob(loc, idx, blocks[idx], st)
				c.Insert(loc, idx, job)
			}
			return nil
		})
	}

	// hasher pool: repeatedly kicks every piece until all are fully hashed.
	completedCh := make(chan *HashJob, numPieces)
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			for iter := 0; iter < 50; iter++ {
				for _, loc := range locs {
					var completed []*HashJob
					c.KickHasher(loc, &completed)
					for _, hj := range completed {
						completedCh <- hj
					}
				}
			}
			return nil
		})
	}

	// flusher: one loop draining toward target 0.
	g.Go(func() error {
		writer := func(loc PieceLocation, startBlock int, out *bittorrent.Bitfield, blks []BlockView, hashCursor int) int {
			for i := range blks {
				out.Set(uint32(i))
			}
			return len(blks)
		}
		clearCb := func(aborted []*WriteJob, parked *ClearJob) {}
		for iter := 0; iter < 50; iter++ {
			c.FlushToDisk(writer, 0, clearCb)
		}
		return nil
	})

	require.NoError(t, g.Wait())
	close(completedCh)

	// drain any hash jobs the hasher pool queued via kick_hasher.
	for range completedCh {
	}

	// after concurrent work settles, explicitly finish hashing and flushing
	// every piece (goroutines above ran a bounded number of iterations and
	// may have stopped before convergence under scheduling pressure).
	var finalCompleted []*HashJob
	for _, loc := range locs {
		c.KickHasher(loc, &finalCompleted)
	}
	writer := func(loc PieceLocation, startBlock int, out *bittorrent.Bitfield, blks []BlockView, hashCursor int) int {
		for i := range blks {
			out.Set(uint32(i))
		}
		return len(blks)
	}
	c.FlushToDisk(writer, 0, func(aborted []*WriteJob, parked *ClearJob) {})

	checkAllProperties(t, c)
	require.Equal(t, 0, c.Size())
}
