package dvd

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrOpen is returned when no backend can open a path.
	ErrOpen = errors.New("cannot open disc")
	// ErrIO wraps block reads that still fail after retrying.
	ErrIO = errors.New("read error")
	// ErrFormat marks inconsistent navigation packs or tables.
	ErrFormat = errors.New("malformed disc structure")
	// ErrNotFound is returned for unknown titles and for cursor queries
	// without an active title.
	ErrNotFound = errors.New("not found")
	// ErrUnsupported is returned for out of range angles.
	ErrUnsupported = errors.New("unsupported")
	// ErrEndOfTitle is returned by Read once the title has ended. It matches
	// io.EOF.
	ErrEndOfTitle = fmt.Errorf("end of title: %w", io.EOF)
)
