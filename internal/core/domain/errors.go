package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCorpus          = errors.New("empty corpus")
	ErrNotIndexed           = errors.New("not indexed")
	ErrAlgorithmUnavailable = errors.New("algorithm unavailable")
	ErrNoResults            = errors.New("no results")
	ErrProviderFailure      = errors.New("provider failure")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnknownQuestion      = errors.New("unknown question")
	ErrInvalidFlow          = errors.New("invalid flow configuration")
	ErrResultNotFound       = errors.New("result not found")
	ErrTemporary            = errors.New("temporary failure")
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
