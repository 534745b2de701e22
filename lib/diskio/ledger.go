package diskio

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/majestrate/xdcache/lib/bittorrent"
	"github.com/majestrate/xdcache/lib/diskcache"
)

const flushedBucket = "flushed_blocks"

// Ledger is a durable record of which (torrent, piece, block) triples have
// been confirmed flushed to disk, backed by a bbolt database the same way
// khushveer007/tdm's BboltRepository backs its download records. Nothing
// in lib/diskcache depends on this - it's a bookkeeping collaborator a
// real disk-writing caller keeps next to the raw block I/O, so a restart
// can tell which blocks still need re-verification against a torrent's
// bitfield without re-hashing everything.
type Ledger struct {
	db *bbolt.DB
}

// OpenLedger opens (creating if necessary) a bbolt-backed ledger at path.
func OpenLedger(path string) (*Ledger, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("diskio: open ledger: %w", err)
	}
	l := &Ledger{db: db}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(flushedBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("diskio: init ledger: %w", err)
	}
	return l, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func blockKey(loc diskcache.PieceLocation, blockIdx int) []byte {
	k := make([]byte, 12)
	binary.BigEndian.PutUint32(k[0:4], uint32(loc.Torrent))
	binary.BigEndian.PutUint32(k[4:8], loc.Piece)
	binary.BigEndian.PutUint32(k[8:12], uint32(blockIdx))
	return k
}

// RecordFlushed marks block blockIdx of loc as confirmed durable.
func (l *Ledger) RecordFlushed(loc diskcache.PieceLocation, blockIdx int) error {
	return l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(flushedBucket))
		return b.Put(blockKey(loc, blockIdx), []byte{1})
	})
}

// IsFlushed reports whether block blockIdx of loc has been recorded as
// confirmed durable.
func (l *Ledger) IsFlushed(loc diskcache.PieceLocation, blockIdx int) bool {
	found := false
	l.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(flushedBucket))
		found = b.Get(blockKey(loc, blockIdx)) != nil
		return nil
	})
	return found
}

// ForgetTorrent removes every recorded block for tid, called once
// FlushStorage has torn a torrent's pieces down for good.
func (l *Ledger) ForgetTorrent(tid diskcache.TorrentID) error {
	prefix := make([]byte, 4)
	binary.BigEndian.PutUint32(prefix, uint32(tid))
	return l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(flushedBucket))
		c := b.Cursor()
		var dead [][]byte
		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			dead = append(dead, append([]byte{}, k...))
		}
		for _, k := range dead {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Writer returns a diskcache.Writer that persists blocks through storage
// and then records each successfully-written block in the ledger, so a
// restart can tell what's already durable without re-verifying against
// the torrent's bitfield.
func (l *Ledger) Writer(storage *BlockStorage) diskcache.Writer {
	return func(loc diskcache.PieceLocation, startBlock int, out *bittorrent.Bitfield, blocks []diskcache.BlockView, hashCursor int) int {
		n := storage.WriteBlocks(loc, startBlock, out, blocks, hashCursor)
		for i := 0; i < n; i++ {
			if err := l.RecordFlushed(loc, startBlock+i); err != nil {
				return i
			}
		}
		return n
	}
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
