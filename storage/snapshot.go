package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteSnapshotFile atomically replaces path's contents with data: it writes
// to a temp file in the same directory and renames over the destination, so
// a crash mid-write never leaves a half-written snapshot for the next
// startup to load.
func WriteSnapshotFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp snapshot into place: %w", err)
	}
	return nil
}

// ReadSnapshotFile reads path's contents, returning (nil, nil) if the file
// does not exist yet (a fresh node has nothing to resume from).
func ReadSnapshotFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	return data, nil
}
