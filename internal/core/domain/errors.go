package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrClassification means intent classification stayed malformed or
	// unavailable after its single formatting retry.
	ErrClassification = errors.New("classification failed")
	// ErrRetrievalUnavailable means both retrieval signals failed or the
	// index is unreachable.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrSynthesis means the generation call failed while composing the
	// final answer. No partial answer is ever returned.
	ErrSynthesis = errors.New("answer synthesis failed")

	ErrPassageNotFound = errors.New("passage not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTemporary       = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
