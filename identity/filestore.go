//go:build !tinygo

package identity

import (
	"os"

	"github.com/fxamacker/cbor/v2"
)

// FileStore persists the two identity values as a CBOR map in a
// single file, for the host build. It is not safe for concurrent use
// from multiple processes.
type FileStore struct {
	path string
}

func OpenFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

type fileStoreContents struct {
	Values map[string]uint16 `cbor:"values"`
}

func (f *FileStore) load() (fileStoreContents, error) {
	var c fileStoreContents
	c.Values = map[string]uint16{}
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	if len(data) == 0 {
		return c, nil
	}
	if err := cbor.Unmarshal(data, &c); err != nil {
		return c, err
	}
	if c.Values == nil {
		c.Values = map[string]uint16{}
	}
	return c, nil
}

func (f *FileStore) ReadU16(key string) (uint16, error) {
	c, err := f.load()
	if err != nil {
		return 0, err
	}
	return c.Values[key], nil
}

func (f *FileStore) WriteU16(key string, v uint16) error {
	c, err := f.load()
	if err != nil {
		return err
	}
	if old, ok := c.Values[key]; ok && old == v {
		return nil
	}
	c.Values[key] = v
	data, err := cbor.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o644)
}
