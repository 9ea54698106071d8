package sonata

import (
	"errors"
	"fmt"

	"github.com/hupe1980/sonata/blobstore"
	"github.com/hupe1980/sonata/errs"
)

// Error kinds. Every error returned by this module matches one of them via
// errors.Is, except backend I/O failures which are passed through.
var (
	ErrInvalidArgument     = errs.ErrInvalidArgument
	ErrInvalidSelection    = errs.ErrInvalidSelection
	ErrMissingDefinition   = errs.ErrMissingDefinition
	ErrRecursiveDefinition = errs.ErrRecursiveDefinition
	ErrTypeMismatch        = errs.ErrTypeMismatch
	ErrRange               = errs.ErrRange
	ErrNotFound            = errs.ErrNotFound
)

// AttributeError describes a failure tied to one attribute of one population.
type AttributeError = errs.AttributeError

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, blobstore.ErrNotFound) && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return err
}
