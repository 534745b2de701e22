package diskcache

// TorrentID identifies one torrent's storage session. The cache doesn't
// care what it means beyond being a stable, comparable key — callers
// typically use a small integer handed out by their storage layer.
type TorrentID uint32

// PieceLocation uniquely identifies a torrent and piece pair. It is the
// key of the cache's piece index.
type PieceLocation struct {
	Torrent TorrentID
	Piece   uint32
}

// Less gives PieceLocation a total order, torrent first then piece index,
// used for Phase C's "iterate by piece-location order" flush pass.
func (l PieceLocation) Less(other PieceLocation) bool {
	if l.Torrent != other.Torrent {
		return l.Torrent < other.Torrent
	}
	return l.Piece < other.Piece
}
