package fs

import (
	"errors"
	"io"
)

// SectorSize is the DVD logical block size.
const SectorSize = 2048

// ErrOutOfRange is returned when a block address lies outside a VOB set.
var ErrOutOfRange = errors.New("block out of range")

// ReaderAtCloser is a random access file handle.
type ReaderAtCloser interface {
	io.ReaderAt
	io.Closer
}

// FileInfo describes a file on a disc folder or inside an image.
type FileInfo interface {
	Name() string
	FullName() string
	Length() int64
	Extension() string
	IsDirectory() bool
	OpenRead() (io.ReadCloser, error)
	OpenReaderAt() (ReaderAtCloser, error)
}

// DirectoryInfo describes a directory. Name lookups are case-insensitive.
type DirectoryInfo interface {
	Name() string
	FullName() string
	GetFiles() ([]FileInfo, error)
	GetDirectories() ([]DirectoryInfo, error)
	GetDirectory(name string) (DirectoryInfo, error)
	GetFile(name string) (FileInfo, error)
}

// FileSystem is either a plain directory tree or a mounted disc image.
type FileSystem interface {
	GetDirectoryInfo(path string) (DirectoryInfo, error)
	IsISO() bool
	VolumeLabel() string
	Close() error
}
