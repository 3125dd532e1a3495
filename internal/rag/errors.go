package rag

import (
	"errors"
	"fmt"
)

// ErrGeneration marks a failed model call inside the generator. It never
// leaves the package; the generator answers with FallbackAnswer instead.
var ErrGeneration = errors.New("generation failed")

// RetrievalError reports a failed question embedding or index query.
// The assembler logs it and continues with an empty context.
type RetrievalError struct {
	Op  string // "embed" or "search"
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval %s failed: %v", e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

// EvaluationError reports a failed grading call or an unparsable verdict.
type EvaluationError struct {
	Err error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation failed: %v", e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
