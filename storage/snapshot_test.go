package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/seloria/seloria/storage"
)

func TestWriteAndReadSnapshotFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.snap")
	want := []byte{0x01, 0x02, 0x03, 0xFF}

	if err := storage.WriteSnapshotFile(path, want); err != nil {
		t.Fatalf("WriteSnapshotFile: %v", err)
	}
	got, err := storage.ReadSnapshotFile(path)
	if err != nil {
		t.Fatalf("ReadSnapshotFile: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("ReadSnapshotFile = %v, want %v", got, want)
	}
}

func TestWriteSnapshotFileOverwritesExistingContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.snap")
	if err := storage.WriteSnapshotFile(path, []byte("first")); err != nil {
		t.Fatalf("WriteSnapshotFile (first): %v", err)
	}
	if err := storage.WriteSnapshotFile(path, []byte("second")); err != nil {
		t.Fatalf("WriteSnapshotFile (second): %v", err)
	}
	got, err := storage.ReadSnapshotFile(path)
	if err != nil {
		t.Fatalf("ReadSnapshotFile: %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("ReadSnapshotFile = %q, want %q", got, "second")
	}
}

func TestReadSnapshotFileMissingReturnsNilNil(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never-written.snap")
	data, err := storage.ReadSnapshotFile(path)
	if err != nil {
		t.Fatalf("ReadSnapshotFile on missing file: %v", err)
	}
	if data != nil {
		t.Fatalf("ReadSnapshotFile on missing file = %v, want nil", data)
	}
}
