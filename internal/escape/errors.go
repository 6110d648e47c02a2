package escape

import (
	"errors"
	"fmt"
)

// ErrInvariant is wrapped by every error caused by a broken internal
// invariant of the pass. Such errors indicate a bug, not a bad program.
var ErrInvariant = errors.New("escape analysis invariant violated")

// InvariantError carries the function being analyzed when an invariant broke.
type InvariantError struct {
	Func string
	Msg  string
}

func (e *InvariantError) Error() string {
	if e.Func == "" {
		return "escape: " + e.Msg
	}
	return fmt.Sprintf("escape: %s: %s", e.Func, e.Msg)
}

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// fatalf aborts the current analysis. The panic is recovered by
// recoverInvariant at the package boundary.
func fatalf(fn, format string, args ...any) {
	panic(&InvariantError{Func: fn, Msg: fmt.Sprintf(format, args...)})
}

// recoverInvariant turns an *InvariantError panic into *errp. Other panics
// propagate.
func recoverInvariant(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	ie, ok := r.(*InvariantError)
	if !ok {
		panic(r)
	}
	*errp = ie
}
