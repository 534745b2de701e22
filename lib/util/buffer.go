package util

import (
	"bytes"
)

// Buffer is a bytes.Buffer that also satisfies io.Closer, so it can stand
// in anywhere an io.WriteCloser is expected (e.g. bencode encoding into an
// in-memory sink).
type Buffer struct {
	bytes.Buffer
}

// Close implements io.Closer
func (b *Buffer) Close() error {
	return nil
}
