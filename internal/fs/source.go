package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Source gives access to the VIDEO_TS files of a disc.
type Source interface {
	VolumeLabel() string
	// OpenIFO opens an IFO or BUP file from VIDEO_TS by name.
	OpenIFO(name string) (io.ReadCloser, error)
	// OpenTitleVOBs opens VTS_xx_1.VOB onwards as one block addressed space.
	OpenTitleVOBs(vts int) (BlockReader, error)
	Close() error
}

// BlockReader reads 2048 byte blocks by logical block number.
type BlockReader interface {
	ReadBlock(lba int64, p []byte) error
	Blocks() int64
	Close() error
}

// maxVOBParts is the highest VTS_xx_N.VOB suffix a title set may use.
const maxVOBParts = 9

type discSource struct {
	fileSystem FileSystem
	videoTS    DirectoryInfo
}

// Open opens a disc from a folder (the disc root or the VIDEO_TS folder
// itself) or from an image file.
func Open(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var fileSystem FileSystem
	rootPath := path
	if info.IsDir() {
		fileSystem = NewDiskFileSystem(path)
	} else {
		isoFS, err := NewISOFileSystem(path)
		if err != nil {
			return nil, err
		}
		fileSystem = isoFS
		rootPath = "/"
	}

	rootDir, err := fileSystem.GetDirectoryInfo(rootPath)
	if err != nil {
		_ = fileSystem.Close()
		return nil, err
	}
	videoTS, err := findVideoTSDirectory(rootDir)
	if err != nil {
		_ = fileSystem.Close()
		return nil, err
	}
	return &discSource{fileSystem: fileSystem, videoTS: videoTS}, nil
}

// NewSource wraps an already opened file system.
func NewSource(fileSystem FileSystem, root string) (Source, error) {
	rootDir, err := fileSystem.GetDirectoryInfo(root)
	if err != nil {
		return nil, err
	}
	videoTS, err := findVideoTSDirectory(rootDir)
	if err != nil {
		return nil, err
	}
	return &discSource{fileSystem: fileSystem, videoTS: videoTS}, nil
}

func findVideoTSDirectory(root DirectoryInfo) (DirectoryInfo, error) {
	if root == nil {
		return nil, fmt.Errorf("unable to locate DVD structure")
	}
	if strings.EqualFold(root.Name(), "VIDEO_TS") {
		if _, err := root.GetFile("VIDEO_TS.IFO"); err == nil {
			return root, nil
		}
	}
	if dir, err := root.GetDirectory("VIDEO_TS"); err == nil {
		return dir, nil
	}
	return nil, fmt.Errorf("unable to locate VIDEO_TS in %s", root.FullName())
}

func (s *discSource) VolumeLabel() string {
	return s.fileSystem.VolumeLabel()
}

func (s *discSource) OpenIFO(name string) (io.ReadCloser, error) {
	file, err := s.videoTS.GetFile(name)
	if err != nil {
		return nil, err
	}
	return file.OpenRead()
}

func (s *discSource) OpenTitleVOBs(vts int) (BlockReader, error) {
	var parts []vobPart
	var blocks int64
	closeAll := func() {
		for _, p := range parts {
			_ = p.file.Close()
		}
	}

	for n := 1; n <= maxVOBParts; n++ {
		info, err := s.videoTS.GetFile(fmt.Sprintf("VTS_%02d_%d.VOB", vts, n))
		if err != nil {
			break
		}
		file, err := info.OpenReaderAt()
		if err != nil {
			closeAll()
			return nil, err
		}
		size := info.Length() / SectorSize
		parts = append(parts, vobPart{file: file, start: blocks, blocks: size})
		blocks += size
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no title VOBs for title set %d: %w", vts, os.ErrNotExist)
	}
	return &vobSet{parts: parts, blocks: blocks}, nil
}

func (s *discSource) Close() error {
	return s.fileSystem.Close()
}

type vobPart struct {
	file   ReaderAtCloser
	start  int64
	blocks int64
}

// vobSet concatenates the parts of a title VOB set.
type vobSet struct {
	parts  []vobPart
	blocks int64
}

func (v *vobSet) Blocks() int64 {
	return v.blocks
}

func (v *vobSet) ReadBlock(lba int64, p []byte) error {
	if len(p) < SectorSize {
		return fmt.Errorf("block buffer too small: %d", len(p))
	}
	if lba < 0 || lba >= v.blocks {
		return fmt.Errorf("block %d of %d: %w", lba, v.blocks, ErrOutOfRange)
	}
	for _, part := range v.parts {
		if lba >= part.start+part.blocks {
			continue
		}
		n, err := part.file.ReadAt(p[:SectorSize], (lba-part.start)*SectorSize)
		if n == SectorSize {
			return nil
		}
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return fmt.Errorf("read block %d: %w", lba, err)
	}
	return fmt.Errorf("block %d of %d: %w", lba, v.blocks, ErrOutOfRange)
}

func (v *vobSet) Close() error {
	var errs []error
	for _, p := range v.parts {
		errs = append(errs, p.file.Close())
	}
	v.parts = nil
	return errors.Join(errs...)
}
