package minirel_util

import (
	"encoding/hex"
	"os"

	"github.com/spaolacci/murmur3"

	"github.com/minirel/MinirelDB/common"
	"github.com/minirel/MinirelDB/errors"
	"github.com/minirel/MinirelDB/storage/disk"
)

func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return err == nil
}

// FileDigest hashes the whole content of name with murmur3 (128 bit) and
// returns it as hex. two files with equal digests hold equal bytes for all
// practical purposes, which is what the recovery idempotence checks need.
func FileDigest(fs disk.FileSystem, name string) (string, error) {
	if !fs.Exists(name) {
		return "", errors.Wrapf(os.ErrNotExist, "%s", name)
	}
	file, err := fs.OpenFile(name)
	if err != nil {
		return "", err
	}
	defer file.Close()
	size, err := file.Size()
	if err != nil {
		return "", err
	}

	h := murmur3.New128()
	buf := make([]byte, common.BlockSize)
	for offset := int64(0); offset < size; offset += common.BlockSize {
		chunk := buf
		if rest := size - offset; rest < int64(len(buf)) {
			chunk = buf[:rest]
		}
		if err = disk.ReadFull(file, chunk, offset); err != nil {
			return "", err
		}
		h.Write(chunk)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
