package mmap

import "errors"

// AccessPattern is a paging hint for a mapping.
type AccessPattern int

const (
	AccessDefault AccessPattern = iota
	// AccessSequential suits whole-dataset scans.
	AccessSequential
	// AccessRandom suits selection reads that jump between chunks.
	AccessRandom
)

var (
	ErrClosed        = errors.New("mmap: mapping is closed")
	ErrInvalidSize   = errors.New("mmap: invalid file size")
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)
