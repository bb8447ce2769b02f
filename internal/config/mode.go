package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned by ParseMode for names outside the closed set.
var ErrUnknownMode = errors.New("unknown mode")

// Mode selects the processing strategy. The zero value is Sequential.
type Mode int

const (
	Sequential Mode = iota
	Parallel
	Batched
)

var modeNames = [...]string{
	Sequential: "sequential",
	Parallel:   "parallel",
	Batched:    "batched",
}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool { return m >= 0 && int(m) < len(modeNames) }

// ParseMode maps a mode name onto a Mode. Matching ignores case and
// surrounding whitespace.
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range modeNames {
		if n == name {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q (want one of %s)", ErrUnknownMode, s, strings.Join(modeNames[:], ", "))
}
