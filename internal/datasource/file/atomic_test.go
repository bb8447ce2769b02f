package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		names = append(names, e.Name())
	}
	return names
}

func TestAtomic_CommitPublishes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dst := filepath.Join(dir, "eligible.csv")

	out, err := NewAtomic(dst).Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := out.Write([]byte("VIN (1-10)\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(dst); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("destination visible before Commit: %v", err)
	}
	if err := out.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read committed file: %v", err)
	}
	if string(got) != "VIN (1-10)\n" {
		t.Fatalf("content = %q", got)
	}
	if names := dirEntries(t, dir); len(names) != 1 {
		t.Fatalf("leftover files after commit: %v", names)
	}
	if err := out.Abort(); err != nil {
		t.Fatalf("Abort after Commit should be a no-op, got %v", err)
	}
	if _, err := out.Write([]byte("x")); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("Write after Commit: %v, want os.ErrClosed", err)
	}
}

func TestAtomic_AbortKeepsPreviousFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	dst := filepath.Join(dir, "eligible.csv")
	if err := os.WriteFile(dst, []byte("previous run\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	out, err := NewAtomic(dst).Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := out.Write([]byte("partial")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := out.Abort(); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "previous run\n" {
		t.Fatalf("previous output clobbered: %q", got)
	}
	if names := dirEntries(t, dir); len(names) != 1 {
		t.Fatalf("temporary file left behind: %v", names)
	}
}

func TestAtomic_CreateErrors(t *testing.T) {
	t.Parallel()

	_, err := NewAtomic(filepath.Join(t.TempDir(), "no", "such", "dir", "out.csv")).Create(context.Background())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing directory: got %v, want os.ErrNotExist", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewAtomic(filepath.Join(t.TempDir(), "out.csv")).Create(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled context: got %v", err)
	}
}
