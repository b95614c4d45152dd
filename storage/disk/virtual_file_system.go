package disk

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dsnet/golib/memfile"
	"github.com/sasha-s/go-deadlock"

	"github.com/minirel/MinirelDB/errors"
)

// VirtualFileSystem keeps every file in memory. the contents outlive the
// handles, so a database can be dropped without closing and opened again
// on the same VirtualFileSystem to simulate a process restart.
type VirtualFileSystem struct {
	mutex *deadlock.Mutex
	files map[string]*memfile.File
}

// virtualFile is one handle on a memfile. memfile locks every call and
// grows the file on writes past the end.
type virtualFile struct {
	name   string
	mem    *memfile.File
	closed bool
}

func NewVirtualFileSystem() *VirtualFileSystem {
	return &VirtualFileSystem{new(deadlock.Mutex), make(map[string]*memfile.File)}
}

func (fs *VirtualFileSystem) OpenFile(name string) (File, error) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	name = filepath.Clean(name)
	mem, exist := fs.files[name]
	if !exist {
		mem = memfile.New(make([]byte, 0))
		fs.files[name] = mem
	}
	return &virtualFile{name: name, mem: mem}, nil
}

func (fs *VirtualFileSystem) Exists(name string) bool {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	_, exist := fs.files[filepath.Clean(name)]
	return exist
}

func (fs *VirtualFileSystem) Remove(name string) error {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	name = filepath.Clean(name)
	if _, exist := fs.files[name]; !exist {
		return errors.Wrapf(os.ErrNotExist, "can't remove %s", name)
	}
	delete(fs.files, name)
	return nil
}

func (fs *VirtualFileSystem) List(dir string, suffix string) ([]string, error) {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()

	dir = filepath.Clean(dir)
	ret := make([]string, 0)
	for name := range fs.files {
		if filepath.Dir(name) == dir && strings.HasSuffix(name, suffix) {
			ret = append(ret, filepath.Base(name))
		}
	}
	sort.Strings(ret)
	return ret, nil
}

func (fs *VirtualFileSystem) MkdirAll(dir string) error {
	// directories are implicit
	return nil
}

func (f *virtualFile) ReadAt(buf []byte, offset int64) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	return f.mem.ReadAt(buf, offset)
}

func (f *virtualFile) WriteAt(buf []byte, offset int64) (int, error) {
	if f.closed {
		return 0, os.ErrClosed
	}
	return f.mem.WriteAt(buf, offset)
}

func (f *virtualFile) Sync() error {
	if f.closed {
		return os.ErrClosed
	}
	return nil
}

func (f *virtualFile) Size() (int64, error) {
	return int64(len(f.mem.Bytes())), nil
}

func (f *virtualFile) Truncate(size int64) error {
	if f.closed {
		return os.ErrClosed
	}
	return f.mem.Truncate(size)
}

func (f *virtualFile) Close() error {
	f.closed = true
	return nil
}

func (f *virtualFile) Name() string {
	return f.name
}
