package fs

import (
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/s0up4200/go-dvdread/internal/fs/udf"
)

// ISOFileSystem reads the UDF file system of a DVD image.
type ISOFileSystem struct {
	isoPath     string
	volumeLabel string
	udfReader   *udf.Reader
	// Cache for directory listings
	dirCache map[string][]*udf.File
}

// NewISOFileSystem opens an image file and reads its UDF structures.
func NewISOFileSystem(isoPath string) (*ISOFileSystem, error) {
	reader, err := udf.NewReader(isoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open UDF volume: %w", err)
	}
	label := reader.VolumeLabel()
	if label == "" {
		label = strings.TrimSuffix(filepath.Base(isoPath), filepath.Ext(isoPath))
	}
	return &ISOFileSystem{
		isoPath:     isoPath,
		volumeLabel: label,
		udfReader:   reader,
		dirCache:    make(map[string][]*udf.File),
	}, nil
}

// Close closes the image file.
func (fs *ISOFileSystem) Close() error {
	if fs.udfReader == nil {
		return nil
	}
	err := fs.udfReader.Close()
	fs.udfReader = nil
	fs.dirCache = make(map[string][]*udf.File)
	return err
}

// VolumeLabel returns the volume label of the image.
func (fs *ISOFileSystem) VolumeLabel() string {
	return fs.volumeLabel
}

// IsISO returns true for ISO file system.
func (fs *ISOFileSystem) IsISO() bool {
	return true
}

// GetDirectoryInfo returns information about a directory in the image.
func (fs *ISOFileSystem) GetDirectoryInfo(p string) (DirectoryInfo, error) {
	if fs.udfReader == nil {
		return nil, fmt.Errorf("ISO not mounted")
	}
	p = fs.normalizePath(p)
	if _, err := fs.list(p); err != nil {
		return nil, err
	}
	return &isoDirectoryInfo{name: path.Base(p), fullPath: p, fs: fs}, nil
}

func (fs *ISOFileSystem) list(p string) ([]*udf.File, error) {
	if entries, ok := fs.dirCache[p]; ok {
		return entries, nil
	}
	entries, err := fs.udfReader.ReadDir(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	fs.dirCache[p] = entries
	return entries, nil
}

// normalizePath normalizes a path for UDF access
func (fs *ISOFileSystem) normalizePath(p string) string {
	p = filepath.ToSlash(p)
	p = strings.TrimPrefix(p, "./")
	p = strings.Trim(p, "/")
	if p == "" {
		return "/"
	}
	return "/" + p
}

// isoFileInfo implements FileInfo for files within an image.
type isoFileInfo struct {
	fullPath string
	file     *udf.File
}

func (f *isoFileInfo) Name() string {
	return f.file.Name
}

func (f *isoFileInfo) FullName() string {
	return f.fullPath
}

func (f *isoFileInfo) Length() int64 {
	return f.file.Size()
}

func (f *isoFileInfo) Extension() string {
	return strings.ToLower(path.Ext(f.file.Name))
}

func (f *isoFileInfo) IsDirectory() bool {
	return f.file.IsDir
}

func (f *isoFileInfo) OpenRead() (io.ReadCloser, error) {
	return io.NopCloser(f.file.Open()), nil
}

func (f *isoFileInfo) OpenReaderAt() (ReaderAtCloser, error) {
	return nopReaderAtCloser{f.file.Open()}, nil
}

type nopReaderAtCloser struct {
	io.ReaderAt
}

func (nopReaderAtCloser) Close() error { return nil }

// isoDirectoryInfo implements DirectoryInfo for directories within an image.
type isoDirectoryInfo struct {
	name     string
	fullPath string
	fs       *ISOFileSystem
}

func (d *isoDirectoryInfo) Name() string {
	return d.name
}

func (d *isoDirectoryInfo) FullName() string {
	return d.fullPath
}

func (d *isoDirectoryInfo) GetFiles() ([]FileInfo, error) {
	entries, err := d.fs.list(d.fullPath)
	if err != nil {
		return nil, err
	}
	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir {
			continue
		}
		files = append(files, &isoFileInfo{fullPath: path.Join(d.fullPath, entry.Name), file: entry})
	}
	return files, nil
}

func (d *isoDirectoryInfo) GetDirectories() ([]DirectoryInfo, error) {
	entries, err := d.fs.list(d.fullPath)
	if err != nil {
		return nil, err
	}
	var dirs []DirectoryInfo
	for _, entry := range entries {
		if !entry.IsDir {
			continue
		}
		dirs = append(dirs, &isoDirectoryInfo{
			name:     entry.Name,
			fullPath: path.Join(d.fullPath, entry.Name),
			fs:       d.fs,
		})
	}
	return dirs, nil
}

func (d *isoDirectoryInfo) GetDirectory(name string) (DirectoryInfo, error) {
	dirs, err := d.GetDirectories()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if strings.EqualFold(dir.Name(), name) {
			return dir, nil
		}
	}
	return nil, fmt.Errorf("directory not found: %s", name)
}

func (d *isoDirectoryInfo) GetFile(name string) (FileInfo, error) {
	files, err := d.GetFiles()
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if strings.EqualFold(file.Name(), name) {
			return file, nil
		}
	}
	return nil, fmt.Errorf("file not found: %s", name)
}
