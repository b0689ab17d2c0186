package compiler

import (
	"errors"
	"fmt"
)

// CompileError is one diagnostic produced while compiling a chunk: a
// source line, the token text where the parser gave up, and a message.
// Compile keeps parsing after reporting one (panic-mode recovery, see
// synchronize) so a single source file can surface more than one.
type CompileError struct {
	Line    int
	Where   string
	Message string
}

func (e *CompileError) Error() string {
	if e.Where == "" {
		return fmt.Sprintf("[line %d] Error: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("[line %d] Error at '%s': %s", e.Line, e.Where, e.Message)
}

// joinErrors flattens accumulated CompileErrors into a single error via
// errors.Join, or nil if there were none.
func joinErrors(errs []*CompileError) error {
	if len(errs) == 0 {
		return nil
	}
	wrapped := make([]error, len(errs))
	for i, e := range errs {
		wrapped[i] = e
	}
	return errors.Join(wrapped...)
}
