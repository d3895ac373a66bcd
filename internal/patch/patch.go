// Package patch implements the two patch envelope formats tools accept
// (a minimal unified diff, and a freeform Begin/End Patch envelope) and
// an atomic multi-file applier: either every change in a patch lands on
// disk, or none does.
package patch

import (
	"errors"
	"fmt"
)

// Op identifies what a PatchChange does to its target path.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Hunk is one contiguous edit within an update change. Lines carry their
// original one-character prefix: ' ' (context), '-' (removal), '+'
// (addition).
type Hunk struct {
	StartOld int
	LenOld   int
	StartNew int
	LenNew   int
	Lines    []string
}

// PatchChange is one file-level operation parsed from a patch envelope.
type PatchChange struct {
	Op         Op
	Path       string
	NewContent string // OpAdd only
	Hunks      []Hunk // OpUpdate only
}

// ErrParse is wrapped by every parse failure.
var ErrParse = errors.New("patch parse error")

// ErrVerify is wrapped by every pre-apply verification failure.
var ErrVerify = errors.New("patch verification error")

// ErrApply is wrapped by every mid-apply failure (rollback has already
// run by the time it is returned).
var ErrApply = errors.New("patch apply error")

func parseErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}

func verifyErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrVerify, fmt.Sprintf(format, args...))
}

func applyErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrApply, fmt.Sprintf(format, args...))
}
