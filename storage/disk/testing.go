package disk

import (
	"os"
	"strings"

	"github.com/sasha-s/go-deadlock"

	"github.com/minirel/MinirelDB/errors"
)

const ErrInjectedCrash = errors.Error("injected crash: write refused")

// NewFileSystemTest returns a FileSystem on a fresh temporary directory
// together with that directory and a cleanup func removing it
func NewFileSystemTest() (FileSystem, string, func()) {
	dir, err := os.MkdirTemp("", "minirel")
	if err != nil {
		panic(err)
	}
	return NewOSFileSystem(), dir, func() { os.RemoveAll(dir) }
}

// CrashingFileSystem wraps a FileSystem and refuses every write to files whose
// name ends with Suffix once Budget writes to such files went through.
// it simulates a process dying between a log sync and the heap writes.
type CrashingFileSystem struct {
	FileSystem
	Suffix string
	mutex  *deadlock.Mutex
	budget int
}

func NewCrashingFileSystem(fs FileSystem, suffix string, budget int) *CrashingFileSystem {
	return &CrashingFileSystem{fs, suffix, new(deadlock.Mutex), budget}
}

// SetBudget resets the number of writes allowed before the crash point
func (fs *CrashingFileSystem) SetBudget(budget int) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	fs.budget = budget
}

func (fs *CrashingFileSystem) OpenFile(name string) (File, error) {
	file, err := fs.FileSystem.OpenFile(name)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(name, fs.Suffix) {
		return file, nil
	}
	return &crashingFile{file, fs}, nil
}

func (fs *CrashingFileSystem) consume() bool {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	if fs.budget <= 0 {
		return false
	}
	fs.budget--
	return true
}

type crashingFile struct {
	File
	fs *CrashingFileSystem
}

func (f *crashingFile) WriteAt(buf []byte, offset int64) (int, error) {
	if !f.fs.consume() {
		return 0, ErrInjectedCrash
	}
	return f.File.WriteAt(buf, offset)
}
