package udf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// File is a file or directory entry of the UDF file system.
type File struct {
	reader  *Reader
	Name    string
	IsDir   bool
	size    int64
	extents []extent
	// embedded holds the file data when it is stored inside the ICB
	embedded []byte
}

// Size returns the file size in bytes.
func (f *File) Size() int64 {
	return f.size
}

// FirstSector returns the absolute image sector of the file's first extent,
// or -1 for files without recorded extents.
func (f *File) FirstSector() int64 {
	if len(f.extents) == 0 {
		return -1
	}
	return f.extents[0].physOff / SectorSize
}

// Open returns a reader over the file contents.
func (f *File) Open() *io.SectionReader {
	er := &extentReader{reader: f.reader, extents: f.extents, size: f.size, embedded: f.embedded}
	return io.NewSectionReader(er, 0, f.size)
}

type extent struct {
	fileStart int64
	fileEnd   int64
	physOff   int64
}

// extentReader maps file offsets onto the image through the file's extents.
type extentReader struct {
	reader   *Reader
	extents  []extent
	size     int64
	embedded []byte
	pos      int64
}

func (e *extentReader) ReadAt(p []byte, off int64) (int, error) {
	if off >= e.size {
		return 0, io.EOF
	}
	if e.embedded != nil {
		n := copy(p, e.embedded[off:])
		if n < len(p) {
			return n, io.EOF
		}
		return n, nil
	}

	total := 0
	for total < len(p) && off < e.size {
		ext, ok := e.find(off)
		if !ok {
			return total, fmt.Errorf("udf: offset %d not covered by an extent", off)
		}
		chunk := min(int64(len(p)-total), ext.fileEnd-off, e.size-off)
		n, err := e.reader.src.ReadAt(p[total:total+int(chunk)], ext.physOff+(off-ext.fileStart))
		total += n
		off += int64(n)
		if err != nil && (err != io.EOF || int64(n) < chunk) {
			return total, err
		}
	}
	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

func (e *extentReader) Read(p []byte) (int, error) {
	n, err := e.ReadAt(p, e.pos)
	e.pos += int64(n)
	return n, err
}

func (e *extentReader) find(off int64) (extent, bool) {
	for _, ext := range e.extents {
		if off >= ext.fileStart && off < ext.fileEnd {
			return ext, true
		}
	}
	return extent{}, false
}

// Lookup resolves a slash separated path, matching names case-insensitively.
func (r *Reader) Lookup(filePath string) (*File, error) {
	current, err := r.fileEntry("", r.rootICB)
	if err != nil {
		return nil, err
	}
	current.IsDir = true

	for _, part := range strings.Split(strings.Trim(filePath, "/"), "/") {
		if part == "" {
			continue
		}
		if !current.IsDir {
			return nil, fmt.Errorf("%s is not a directory", current.Name)
		}
		entries, err := r.readDirectory(current)
		if err != nil {
			return nil, err
		}
		var next *File
		for _, entry := range entries {
			if strings.EqualFold(entry.Name, part) {
				next = entry
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("file not found: %s", filePath)
		}
		current = next
	}
	return current, nil
}

// ReadDir lists the entries of a directory.
func (r *Reader) ReadDir(dirPath string) ([]*File, error) {
	dir, err := r.Lookup(dirPath)
	if err != nil {
		return nil, err
	}
	if !dir.IsDir {
		return nil, fmt.Errorf("%s is not a directory", dirPath)
	}
	return r.readDirectory(dir)
}

// fileEntry reads the (extended) file entry an ICB points at.
func (r *Reader) fileEntry(name string, icb LongAD) (*File, error) {
	block, err := r.readSector(int64(r.partitionStart) + int64(icb.ExtentLocation.LogicalBlockNumber))
	if err != nil {
		return nil, err
	}

	var lenEA, lenAD uint32
	var base int
	switch tag := readTag(block); tag.TagIdentifier {
	case TagFile:
		lenEA = binary.LittleEndian.Uint32(block[feLenEA:])
		lenAD = binary.LittleEndian.Uint32(block[feLenAD:])
		base = feBaseSize
	case TagExtendedFileEntry:
		lenEA = binary.LittleEndian.Uint32(block[efeLenEA:])
		lenAD = binary.LittleEndian.Uint32(block[efeLenAD:])
		base = efeBaseSize
	default:
		return nil, fmt.Errorf("unexpected tag type: %d for %q", tag.TagIdentifier, name)
	}

	file := &File{
		reader: r,
		Name:   name,
		IsDir:  block[feFileType] == ICBFileTypeDirectory,
		size:   int64(binary.LittleEndian.Uint64(block[feInfoLen:])),
	}

	start := base + int(lenEA)
	end := start + int(lenAD)
	if start > len(block) || end > len(block) {
		return nil, fmt.Errorf("allocation descriptors out of range for %q", name)
	}
	ads := block[start:end]

	switch binary.LittleEndian.Uint16(block[feICBFlags:]) & 0x7 {
	case adEmbedded:
		file.embedded = append([]byte(nil), ads...)
		file.size = min(file.size, int64(len(ads)))
	case adShort:
		var offset int64
		for len(ads) >= 8 {
			var sad ShortAD
			_ = binary.Read(bytes.NewReader(ads[:8]), binary.LittleEndian, &sad)
			ads = ads[8:]
			length := int64(sad.ExtentLength & 0x3FFFFFFF)
			if length == 0 {
				break
			}
			file.extents = append(file.extents, extent{
				fileStart: offset,
				fileEnd:   offset + length,
				physOff:   (int64(r.partitionStart) + int64(sad.ExtentPosition)) * SectorSize,
			})
			offset += length
		}
	case adLong:
		var offset int64
		for len(ads) >= 16 {
			lad := readLongAD(ads)
			ads = ads[16:]
			length := int64(lad.ExtentLength & 0x3FFFFFFF)
			if length == 0 {
				break
			}
			file.extents = append(file.extents, extent{
				fileStart: offset,
				fileEnd:   offset + length,
				physOff:   (int64(r.partitionStart) + int64(lad.ExtentLocation.LogicalBlockNumber)) * SectorSize,
			})
			offset += length
		}
	default:
		return nil, fmt.Errorf("unsupported allocation descriptor type for %q", name)
	}
	return file, nil
}

// readDirectory parses the file identifier descriptors of a directory.
func (r *Reader) readDirectory(dir *File) ([]*File, error) {
	data, err := io.ReadAll(dir.Open())
	if err != nil {
		return nil, err
	}

	var entries []*File
	for offset := 0; offset+fidBaseSize <= len(data); {
		fid := data[offset:]
		if readTag(fid).TagIdentifier != TagFileIdentifier {
			break
		}
		characteristics := fid[fidCharacteristics]
		lenFI := int(fid[fidLenFI])
		lenIU := int(binary.LittleEndian.Uint16(fid[fidLenIU:]))
		size := (fidBaseSize + lenIU + lenFI + 3) &^ 3
		if fidBaseSize+lenIU+lenFI > len(fid) {
			return nil, fmt.Errorf("file identifier overruns directory %q", dir.Name)
		}
		offset += size

		if characteristics&(FileCharParent|FileCharDeleted) != 0 {
			continue
		}
		name := decodeString(fid[fidBaseSize+lenIU : fidBaseSize+lenIU+lenFI])
		entry, err := r.fileEntry(name, readLongAD(fid[fidICB:]))
		if err != nil {
			return nil, err
		}
		if characteristics&FileCharDirectory != 0 {
			entry.IsDir = true
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
