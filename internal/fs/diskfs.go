package fs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskFileSystem implements FileSystem for regular disk access.
type DiskFileSystem struct {
	root string
}

// NewDiskFileSystem creates a disk file system rooted at root. The volume
// label of a folder source is the name of the folder holding VIDEO_TS.
func NewDiskFileSystem(root string) FileSystem {
	return &DiskFileSystem{root: root}
}

// GetDirectoryInfo returns information about a directory on disk.
func (fs *DiskFileSystem) GetDirectoryInfo(path string) (DirectoryInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", path)
	}
	return &diskDirectoryInfo{path: path}, nil
}

// IsISO returns false for disk file system.
func (fs *DiskFileSystem) IsISO() bool {
	return false
}

func (fs *DiskFileSystem) VolumeLabel() string {
	root := filepath.Clean(fs.root)
	if strings.EqualFold(filepath.Base(root), "VIDEO_TS") {
		root = filepath.Dir(root)
	}
	return filepath.Base(root)
}

func (fs *DiskFileSystem) Close() error {
	return nil
}

// diskFileInfo implements FileInfo for regular files.
type diskFileInfo struct {
	path string
	info os.FileInfo
}

func (f *diskFileInfo) Name() string {
	return f.info.Name()
}

func (f *diskFileInfo) FullName() string {
	return f.path
}

func (f *diskFileInfo) Length() int64 {
	return f.info.Size()
}

func (f *diskFileInfo) Extension() string {
	return strings.ToLower(filepath.Ext(f.path))
}

func (f *diskFileInfo) IsDirectory() bool {
	return f.info.IsDir()
}

func (f *diskFileInfo) OpenRead() (io.ReadCloser, error) {
	return os.Open(f.path)
}

func (f *diskFileInfo) OpenReaderAt() (ReaderAtCloser, error) {
	return os.Open(f.path)
}

// diskDirectoryInfo implements DirectoryInfo for regular directories.
type diskDirectoryInfo struct {
	path string
}

func (d *diskDirectoryInfo) Name() string {
	return filepath.Base(d.path)
}

func (d *diskDirectoryInfo) FullName() string {
	return d.path
}

func (d *diskDirectoryInfo) entries() ([]os.DirEntry, error) {
	return os.ReadDir(d.path)
}

func (d *diskDirectoryInfo) GetFiles() ([]FileInfo, error) {
	entries, err := d.entries()
	if err != nil {
		return nil, err
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		files = append(files, &diskFileInfo{
			path: filepath.Join(d.path, entry.Name()),
			info: info,
		})
	}
	return files, nil
}

func (d *diskDirectoryInfo) GetDirectories() ([]DirectoryInfo, error) {
	entries, err := d.entries()
	if err != nil {
		return nil, err
	}

	var dirs []DirectoryInfo
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, &diskDirectoryInfo{
				path: filepath.Join(d.path, entry.Name()),
			})
		}
	}
	return dirs, nil
}

// resolve finds an entry by exact name first, then case-insensitively.
func (d *diskDirectoryInfo) resolve(name string) (string, os.FileInfo, error) {
	path := filepath.Join(d.path, name)
	if info, err := os.Stat(path); err == nil {
		return path, info, nil
	}
	entries, err := d.entries()
	if err != nil {
		return "", nil, err
	}
	for _, entry := range entries {
		if strings.EqualFold(entry.Name(), name) {
			path = filepath.Join(d.path, entry.Name())
			info, err := os.Stat(path)
			return path, info, err
		}
	}
	return "", nil, fmt.Errorf("%s: %w", filepath.Join(d.path, name), os.ErrNotExist)
}

func (d *diskDirectoryInfo) GetDirectory(name string) (DirectoryInfo, error) {
	path, info, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", name)
	}
	return &diskDirectoryInfo{path: path}, nil
}

func (d *diskDirectoryInfo) GetFile(name string) (FileInfo, error) {
	path, info, err := d.resolve(name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, not a file", name)
	}
	return &diskFileInfo{
		path: path,
		info: info,
	}, nil
}
