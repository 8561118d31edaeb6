package dataset

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// cacheVersion is bumped whenever the gob layout of Dataset changes so
// stale caches fail fast instead of decoding garbage.
const cacheVersion = 1

type cacheEnvelope struct {
	Version int
	Dataset Dataset
}

// Save writes the dataset to path as a gzip-compressed gob stream. The
// parent directory is created if needed.
func (d *Dataset) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}

	zw := gzip.NewWriter(f)
	err = gob.NewEncoder(zw).Encode(cacheEnvelope{Version: cacheVersion, Dataset: *d})
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing dataset cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing dataset cache: %w", err)
	}
	return nil
}

// Load reads a dataset previously written by Save.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset cache: %w", err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("reading dataset cache: %w", err)
	}
	defer zr.Close()

	var env cacheEnvelope
	if err := gob.NewDecoder(zr).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding dataset cache: %w", err)
	}
	if env.Version != cacheVersion {
		return nil, fmt.Errorf("dataset cache version %d is not supported", env.Version)
	}
	return &env.Dataset, nil
}
