package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/batchmessaging/internal/services/batch/storage/integrity"
)

func testKeyring(t *testing.T) *integrity.Keyring {
	t.Helper()
	keyring, err := integrity.NewKeyring(
		map[string][]byte{"test-key-1": []byte("0123456789abcdef0123456789abcdef")},
		"test-key-1",
	)
	if err != nil {
		t.Fatalf("create test keyring: %v", err)
	}
	return keyring
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	return openTestStoreAt(t, filepath.Join(t.TempDir(), "batch.sqlite"), testKeyring(t))
}

func openTestStoreAt(t *testing.T, path string, keyring *integrity.Keyring) *Store {
	t.Helper()
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	store, err := Open(context.Background(), path, keyring, WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
