package errors

import (
	"fmt"
	"runtime/debug"
)

// Guard runs fn and converts a panic into a parse-level error so that one
// malformed question cannot abort its batch.
func Guard(op string, question int, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ParseError(op, question, fmt.Errorf("panic: %v\n%s", r, debug.Stack()))
		}
	}()
	return fn()
}
