package diskio

import (
	"github.com/majestrate/xdcache/lib/bittorrent"
	"github.com/majestrate/xdcache/lib/diskcache"
	"github.com/majestrate/xdcache/lib/log"
)

// WriteBlocks implements diskcache.Writer: it persists each block in
// blocks, in order, stopping at the first write error - the short count
// that results is exactly the backpressure signal FlushToDisk expects.
func (s *BlockStorage) WriteBlocks(loc diskcache.PieceLocation, startBlock int, out *bittorrent.Bitfield, blocks []diskcache.BlockView, hashCursor int) int {
	n := 0
	for i, blk := range blocks {
		blockIdx := startBlock + i
		off := s.blockOffset(loc, blockIdx)
		if err := s.writeOneBlock(off, blk.Buffer); err != nil {
			log.Warnf("diskio: write piece=%d block=%d failed: %s", loc.Piece, blockIdx, err)
			break
		}
		out.Set(uint32(i))
		n++
	}
	return n
}

func (s *BlockStorage) writeOneBlock(off int64, buf []byte) error {
	for _, span := range s.spansFor(off, int64(len(buf))) {
		f, err := s.FS.OpenFileWriteOnly(s.filePath(span.file))
		if err != nil {
			return err
		}
		n := int(span.length)
		chunk := buf[:n]
		buf = buf[n:]
		_, err = f.WriteAt(chunk, span.off)
		if err == nil {
			err = f.Sync()
		}
		f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// ReadBlock reads block blockIdx of loc from the torrent's files into buf,
// for a collaborator that needs bytes the cache doesn't hold in memory
// (cmd/diskcached uses it to replay already-downloaded blocks).
func (s *BlockStorage) ReadBlock(loc diskcache.PieceLocation, blockIdx int, buf []byte) (int, error) {
	off := s.blockOffset(loc, blockIdx)
	n := 0
	for _, span := range s.spansFor(off, int64(len(buf))) {
		f, err := s.FS.OpenFileReadOnly(s.filePath(span.file))
		if err != nil {
			return n, err
		}
		m := int(span.length)
		read, err := f.ReadAt(buf[n:n+m], span.off)
		f.Close()
		n += read
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
