package reach

import (
	"errors"
	"fmt"
	"time"

	"github.com/jward/reach/internal/source"
)

var (
	// ErrIO marks unreadable project files.
	ErrIO = errors.New("i/o error")
	// ErrParse marks files that could not be parsed. Parse failures are
	// *source.ParseError values carrying diagnostics.
	ErrParse = source.ErrSyntax
	// ErrUnresolvedSeed marks a seed whose file or symbol was not found.
	ErrUnresolvedSeed = errors.New("unresolved seed")
	// ErrWorklistOverflow marks a run stopped by its iteration or time cap.
	ErrWorklistOverflow = errors.New("worklist overflow")
)

// UnresolvedSeed records a seed that produced no query. It is reported,
// never fatal.
type UnresolvedSeed struct {
	Seed   Seed   `json:"seed"`
	Reason string `json:"reason"`
}

func (u UnresolvedSeed) Error() string {
	return fmt.Sprintf("unresolved seed %s: %s", u.Seed, u.Reason)
}

func (u UnresolvedSeed) Is(target error) bool {
	return target == ErrUnresolvedSeed
}

// OverflowError reports a worklist that exceeded its limits.
type OverflowError struct {
	Limit     int
	Timeout   time.Duration
	Processed int
	Pending   int
	Elapsed   time.Duration
}

func (e *OverflowError) Error() string {
	if e.Timeout > 0 && e.Elapsed >= e.Timeout {
		return fmt.Sprintf("worklist overflow: timeout %s exceeded after %d queries (%d pending)",
			e.Timeout, e.Processed, e.Pending)
	}
	return fmt.Sprintf("worklist overflow: more than %d queries (%d pending)", e.Limit, e.Pending)
}

func (e *OverflowError) Is(target error) bool {
	return target == ErrWorklistOverflow
}

// ioError tags err as an I/O failure while keeping its chain.
func ioError(err error) error {
	return fmt.Errorf("%w: %w", ErrIO, err)
}
