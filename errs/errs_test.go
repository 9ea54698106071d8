package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorf(t *testing.T) {
	err := Errorf(ErrRange, "tstart %g is after the end of the range", 5.0)
	assert.ErrorIs(t, err, ErrRange)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "out of range: tstart 5 is after the end of the range", err.Error())
}

func TestAttributeError(t *testing.T) {
	err := error(&AttributeError{Population: "nodes-A", Attribute: "attr-X", Err: ErrTypeMismatch})
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Contains(t, err.Error(), `"attr-X"`)

	var ae *AttributeError
	assert.True(t, errors.As(err, &ae))
	assert.Equal(t, "nodes-A", ae.Population)
}
