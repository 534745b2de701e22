package fs

import (
	"io"
	"os"
)

// ReadFile is a file opened for reading
type ReadFile interface {
	io.ReadCloser
	io.ReaderAt
}

// WriteFile is a file opened for writing
type WriteFile interface {
	io.WriteCloser
	io.WriterAt
	Sync() error
}

// Driver abstracts over a filesystem so storage backends don't need to
// care whether blocks land on a local disk or somewhere else.
type Driver interface {
	io.Closer
	// open any underlying contexts
	Open() error
	// open file read only
	OpenFileReadOnly(fpath string) (ReadFile, error)
	// open file write only
	OpenFileWriteOnly(fpath string) (WriteFile, error)
	// return true if file exists
	FileExists(fpath string) bool
	// ensure a directory exists
	EnsureDir(fpath string) error
	// ensure a file exists and is of size sz
	EnsureFile(fpath string, sz uint64) error
	// filepath.Glob lookalike
	Glob(str string) ([]string, error)
	// remove single file
	Remove(fpath string) error
	// remove all in filepath
	RemoveAll(fpath string) error
	// join path
	Join(parts ...string) string
	// move file
	Move(oldPath, newPath string) error
	// split path into dirname, basename
	Split(path string) (string, string)
	// call stat()
	Stat(path string) (os.FileInfo, error)
}
