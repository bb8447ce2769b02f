// Package datasource defines where a run reads its input from and writes its
// output to.
package datasource

import (
	"context"
	"io"
)

// Source opens the input stream of a run.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Sink creates the output of a run.
type Sink interface {
	Create(ctx context.Context) (Output, error)
}

// Output is a destination that becomes visible only on Commit. Abort
// discards everything written; calling Abort after Commit is a no-op.
type Output interface {
	io.Writer
	Commit() error
	Abort() error
}
