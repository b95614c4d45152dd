package disk

import (
	"io"
)

// File is a random access file handle. every write goes straight to the
// underlying storage; Sync makes it durable.
type File interface {
	io.ReaderAt
	io.WriterAt
	Sync() error
	Size() (int64, error)
	Truncate(size int64) error
	Close() error
	Name() string
}

// FileSystem opens the heap files and the log file of one database
type FileSystem interface {
	// OpenFile opens name for read and write, creating it when absent
	OpenFile(name string) (File, error)
	Exists(name string) bool
	Remove(name string) error
	// List returns base names of files in dir ending with suffix
	List(dir string, suffix string) ([]string, error)
	MkdirAll(dir string) error
}

// ReadFull reads len(buf) bytes at offset. bytes beyond the end of the
// file read as zero, the way an allocated but never written block looks.
func ReadFull(f File, buf []byte, offset int64) error {
	n, err := f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return err
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	return nil
}
