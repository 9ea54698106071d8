package container

import (
	"errors"
	"fmt"
)

// ErrFormat is returned when a blob is not a valid container.
var ErrFormat = errors.New("container: invalid format")

// PathError records the container path an operation failed on.
type PathError struct {
	File string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s:%s: %v", e.File, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}
