package chunk

import (
	"errors"
	"fmt"

	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
)

// Kind classifies chunk errors.
type Kind uint8

const (
	OutOfBounds Kind = iota + 1
	IllegalState
	Corrupted
	UnknownBlockType
)

func (k Kind) String() string {
	switch k {
	case OutOfBounds:
		return "out of bounds"
	case IllegalState:
		return "illegal state"
	case Corrupted:
		return "corrupted"
	case UnknownBlockType:
		return "unknown block type"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its Kind.
var (
	ErrOutOfBounds      = &Error{Kind: OutOfBounds}
	ErrIllegalState     = &Error{Kind: IllegalState}
	ErrCorrupted        = &Error{Kind: Corrupted}
	ErrUnknownBlockType = &Error{Kind: UnknownBlockType, Err: block.ErrUnknownType}
)

// Error is the tagged error returned by chunk operations.
type Error struct {
	Kind Kind
	Op   string
	Pos  *Pos
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Pos != nil {
		msg += " at chunk " + e.Pos.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func corrupted(pos Pos, format string, args ...any) error {
	return &Error{Kind: Corrupted, Op: "restore", Pos: &pos, Err: fmt.Errorf(format, args...)}
}
