package disk

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minirel/MinirelDB/errors"
)

// OSFileSystem is the FileSystem on top of the operating system
type OSFileSystem struct{}

func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

type osFile struct {
	*os.File
}

func (f *osFile) Size() (int64, error) {
	fileInfo, err := f.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "stat %s", f.Name())
	}
	return fileInfo.Size(), nil
}

func (fs *OSFileSystem) OpenFile(name string) (File, error) {
	file, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open %s", name)
	}
	return &osFile{file}, nil
}

func (fs *OSFileSystem) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

func (fs *OSFileSystem) Remove(name string) error {
	if err := os.Remove(name); err != nil {
		return errors.Wrapf(err, "can't remove %s", name)
	}
	return nil
}

func (fs *OSFileSystem) List(dir string, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "can't list %s", dir)
	}
	ret := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		ret = append(ret, filepath.Base(entry.Name()))
	}
	sort.Strings(ret)
	return ret, nil
}

func (fs *OSFileSystem) MkdirAll(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "can't create %s", dir)
	}
	return nil
}
