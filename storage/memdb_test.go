package storage_test

import (
	"errors"
	"testing"

	"github.com/seloria/seloria/storage"
)

func TestMemDBPutGetRoundTrip(t *testing.T) {
	db := storage.NewMemDB()
	if err := db.Put([]byte("k"), []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("Get = %q, want %q", got, "v1")
	}
}

func TestMemDBGetMissingKeyReturnsErrNotFound(t *testing.T) {
	db := storage.NewMemDB()
	if _, err := db.Get([]byte("missing")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get missing key error = %v, want ErrNotFound", err)
	}
}

func TestMemDBDeleteRemovesKey(t *testing.T) {
	db := storage.NewMemDB()
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := db.Delete([]byte("k")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := db.Get([]byte("k")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get after Delete error = %v, want ErrNotFound", err)
	}
}

func TestMemDBPutCopiesValueSoCallerMutationDoesNotLeak(t *testing.T) {
	db := storage.NewMemDB()
	value := []byte("original")
	if err := db.Put([]byte("k"), value); err != nil {
		t.Fatalf("Put: %v", err)
	}
	value[0] = 'X'

	got, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "original" {
		t.Fatalf("Get = %q, want %q (Put must copy its input)", got, "original")
	}
}
