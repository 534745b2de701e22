package common

import (
	"encoding/hex"
)

// Infohash is a bittorrent infohash
type Infohash [20]byte

// Hex gets the hex representation
func (ih Infohash) Hex() string {
	return hex.EncodeToString(ih.Bytes())
}

// Bytes gets the underlying byteslice
func (ih Infohash) Bytes() []byte {
	return ih[:]
}
