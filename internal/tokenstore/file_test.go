package tokenstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "token_cache.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	blob := []byte(`{"RefreshToken":{}}`)
	if err := store.Write(context.Background(), blob); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := store.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != string(blob) {
		t.Errorf("Read returned %q, want %q", got, blob)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("file permissions %04o, want 0600", info.Mode().Perm())
	}
}

func TestFileStoreReadMissing(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	if _, err := store.Read(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read of missing file returned %v, want ErrNotFound", err)
	}
}

func TestFileStoreRejectsInsecurePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	if err := os.WriteFile(path, []byte("blob"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	if _, err := store.Read(context.Background()); err == nil {
		t.Error("Read succeeded on a world-readable cache file")
	}
}

func TestFileStoreOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	ctx := context.Background()
	if err := store.Write(ctx, []byte("old")); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if err := store.Write(ctx, []byte("new")); err != nil {
		t.Fatalf("second Write failed: %v", err)
	}

	got, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != "new" {
		t.Errorf("Read returned %q after overwrite, want new", got)
	}
}

func TestFileStoreRemoveIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	if err := store.Write(context.Background(), []byte("blob")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := store.Remove(); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := store.Remove(); err != nil {
		t.Errorf("second Remove failed: %v", err)
	}
}

func TestEnvStoreRequiresVariable(t *testing.T) {
	if _, err := NewEnvStore("FLOWCTL_TEST_UNSET_TOKEN"); err == nil {
		t.Error("NewEnvStore succeeded for an unset variable")
	}
}

func TestEnvStoreReadOnly(t *testing.T) {
	t.Setenv("FLOWCTL_TEST_TOKEN", "static-token")

	store, err := NewEnvStore("FLOWCTL_TEST_TOKEN")
	if err != nil {
		t.Fatalf("NewEnvStore failed: %v", err)
	}

	got, err := store.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != "static-token" {
		t.Errorf("Read returned %q, want static-token", got)
	}

	if err := store.Write(context.Background(), []byte("x")); err == nil {
		t.Error("Write to env storage succeeded, want read-only error")
	}
}
