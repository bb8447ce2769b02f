package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"evetl/internal/datasource"
)

// Atomic is a sink whose output appears at its path only after a successful
// Commit. Data is written to a temporary file in the same directory and
// renamed into place, so readers never observe a partial file and a failed
// run leaves any previous file untouched.
type Atomic struct {
	path string
	perm os.FileMode
}

// NewAtomic returns an Atomic sink for path. The committed file gets mode
// 0o644.
func NewAtomic(path string) *Atomic { return &Atomic{path: path, perm: 0o644} }

var _ datasource.Sink = (*Atomic)(nil)

// Create opens a fresh temporary file next to the destination.
func (a *Atomic) Create(ctx context.Context) (datasource.Output, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	dir, base := filepath.Split(a.path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", a.path, err)
	}
	return &atomicFile{f: f, path: a.path, perm: a.perm}, nil
}

type atomicFile struct {
	f    *os.File
	path string
	perm os.FileMode
	done bool
}

func (o *atomicFile) Write(p []byte) (int, error) {
	if o.done {
		return 0, os.ErrClosed
	}
	return o.f.Write(p)
}

// Commit flushes the temporary file to disk and renames it onto the
// destination path. On failure the temporary file is removed.
func (o *atomicFile) Commit() error {
	if o.done {
		return os.ErrClosed
	}
	o.done = true
	tmp := o.f.Name()

	err := o.f.Sync()
	if cerr := o.f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp, o.perm)
	}
	if err == nil {
		err = os.Rename(tmp, o.path)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit %s: %w", o.path, err)
	}
	return nil
}

// Abort closes and removes the temporary file.
func (o *atomicFile) Abort() error {
	if o.done {
		return nil
	}
	o.done = true
	tmp := o.f.Name()
	err := o.f.Close()
	if rerr := os.Remove(tmp); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
		err = errors.Join(err, rerr)
	}
	if err != nil {
		return fmt.Errorf("abort %s: %w", o.path, err)
	}
	return nil
}
