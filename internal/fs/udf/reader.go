package udf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Reader provides read access to the UDF file system of a DVD image.
type Reader struct {
	src             io.ReaderAt
	closer          io.Closer
	size            int64
	volumeLabel     string
	isoLabel        string
	partitionStart  uint32
	fileSetLocation uint32
	rootICB         LongAD
}

// NewReader opens an image file.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	reader, err := NewReaderAt(file, info.Size())
	if err != nil {
		file.Close()
		return nil, err
	}
	reader.closer = file
	return reader, nil
}

// NewReaderAt reads the UDF structures of an image of the given size.
func NewReaderAt(src io.ReaderAt, size int64) (*Reader, error) {
	reader := &Reader{src: src, size: size}
	if err := reader.initialize(); err != nil {
		return nil, err
	}
	return reader, nil
}

// Close closes the underlying image file when the reader owns it.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// VolumeLabel returns the UDF volume identifier, or the ISO9660 one when the
// UDF label is empty.
func (r *Reader) VolumeLabel() string {
	if r.volumeLabel != "" {
		return r.volumeLabel
	}
	return r.isoLabel
}

func (r *Reader) PartitionStart() uint32 {
	return r.partitionStart
}

func (r *Reader) FileSetLocation() uint32 {
	return r.fileSetLocation
}

func (r *Reader) initialize() error {
	if err := r.verifyVolume(); err != nil {
		return fmt.Errorf("not a valid UDF volume: %w", err)
	}

	mainExtent, err := r.findAnchor()
	if err != nil {
		return fmt.Errorf("failed to find anchor volume descriptor: %w", err)
	}

	if err := r.readVolumeDescriptorSequence(mainExtent); err != nil {
		return fmt.Errorf("failed to read volume descriptor sequence: %w", err)
	}

	block, err := r.readSector(int64(r.partitionStart) + int64(r.fileSetLocation))
	if err != nil {
		return fmt.Errorf("failed to read file set descriptor: %w", err)
	}
	tag := readTag(block)
	if tag.TagIdentifier != TagFileSet {
		return fmt.Errorf("invalid file set descriptor tag: %d (expected %d) at partition block %d",
			tag.TagIdentifier, TagFileSet, r.fileSetLocation)
	}
	r.rootICB = readLongAD(block[fsdRootICB:])
	return nil
}

// verifyVolume walks the volume recognition sequence. DVD images carry an
// ISO9660 descriptor set before the UDF extended area, so CD001 entries are
// skipped after taking the ISO volume label.
func (r *Reader) verifyVolume() error {
	foundNSR := false
	var seen []string

	for sector := int64(vrsSector); sector < vrsLimit; sector++ {
		block, err := r.readSector(sector)
		if err != nil {
			break
		}
		identifier := strings.TrimRight(string(block[1:6]), "\x00")
		seen = append(seen, fmt.Sprintf("%d:%q", sector, identifier))

		switch identifier {
		case StandardIDCD001:
			if block[0] == 1 && r.isoLabel == "" {
				r.isoLabel = strings.TrimRight(string(block[isoVolumeIdentifier:isoVolumeIdentifier+32]), " \x00")
			}
			continue
		case StandardIDCDW02, StandardIDBOOT2, StandardIDBEA01:
			continue
		case StandardIDNSR02, StandardIDNSR03:
			foundNSR = true
			continue
		}
		// TEA01, an empty sector or unknown data ends the sequence
		break
	}

	if !foundNSR {
		return fmt.Errorf("NSR descriptor not found in VRS, scanned %v", seen)
	}
	return nil
}

func (r *Reader) findAnchor() (ExtentAD, error) {
	totalSectors := r.size / SectorSize
	for _, sector := range []int64{256, totalSectors - 256, totalSectors - 1, 512} {
		if sector < 0 || sector >= totalSectors {
			continue
		}
		block, err := r.readSector(sector)
		if err != nil {
			continue
		}
		if readTag(block).TagIdentifier != TagAnchorVolume {
			continue
		}
		return ExtentAD{
			Length:   binary.LittleEndian.Uint32(block[avdpMainExtent:]),
			Location: binary.LittleEndian.Uint32(block[avdpMainExtent+4:]),
		}, nil
	}
	return ExtentAD{}, fmt.Errorf("anchor volume descriptor not found")
}

func (r *Reader) readVolumeDescriptorSequence(extent ExtentAD) error {
	foundPartition := false
	foundLogical := false
	sectors := max(int64(extent.Length)/SectorSize, 1)

scan:
	for i := range sectors {
		block, err := r.readSector(int64(extent.Location) + i)
		if err != nil {
			return err
		}
		switch readTag(block).TagIdentifier {
		case TagPrimaryVolume:
			if r.volumeLabel == "" {
				r.volumeLabel = decodeDString(block[pvdVolumeIdentifier : pvdVolumeIdentifier+32])
			}
		case TagPartition:
			r.partitionStart = binary.LittleEndian.Uint32(block[pdStartingLocation:])
			foundPartition = true
		case TagLogicalVolume:
			fsd := readLongAD(block[lvdContentsUse:])
			r.fileSetLocation = fsd.ExtentLocation.LogicalBlockNumber
			foundLogical = true
		case TagTerminating:
			break scan
		}
	}

	if !foundPartition || !foundLogical {
		return fmt.Errorf("partition or logical volume descriptor missing")
	}
	return nil
}

func (r *Reader) readSector(sector int64) ([]byte, error) {
	b := make([]byte, SectorSize)
	if err := r.readFullAt(sector*SectorSize, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Reader) readFullAt(off int64, p []byte) error {
	sr := io.NewSectionReader(r.src, off, int64(len(p)))
	_, err := io.ReadFull(sr, p)
	return err
}

// ExtentAD represents extent address descriptor
type ExtentAD struct {
	Length   uint32
	Location uint32
}

func readTag(block []byte) Tag {
	var tag Tag
	_ = binary.Read(bytes.NewReader(block[:16]), binary.LittleEndian, &tag)
	return tag
}

func readLongAD(b []byte) LongAD {
	var ad LongAD
	_ = binary.Read(bytes.NewReader(b[:16]), binary.LittleEndian, &ad)
	return ad
}

// decodeDString decodes a fixed size dstring whose last byte holds the
// number of used bytes.
func decodeDString(field []byte) string {
	if len(field) < 2 {
		return ""
	}
	used := int(field[len(field)-1])
	if used == 0 || used > len(field)-1 {
		used = len(field) - 1
	}
	return decodeString(field[:used])
}

// decodeString decodes an OSTA CS0 string: compression id 8 is Latin-1,
// 16 is UCS-2 big endian.
func decodeString(data []byte) string {
	if len(data) < 2 {
		return ""
	}
	var (
		out string
		err error
	)
	switch data[0] {
	case 8:
		body := data[1:]
		if idx := bytes.IndexByte(body, 0); idx >= 0 {
			body = body[:idx]
		}
		out, err = charmap.ISO8859_1.NewDecoder().String(string(body))
	case 16:
		body := data[1:]
		body = body[:len(body)&^1]
		out, err = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder().String(string(body))
		if idx := strings.IndexByte(out, 0); idx >= 0 {
			out = out[:idx]
		}
	default:
		return ""
	}
	if err != nil {
		return ""
	}
	return strings.TrimRight(out, " ")
}

// ISO9660Label reads the primary volume descriptor label of a plain ISO9660
// image. It is used for images without a usable UDF file system.
func ISO9660Label(src io.ReaderAt) (string, error) {
	block := make([]byte, SectorSize)
	for sector := int64(vrsSector); sector < vrsLimit; sector++ {
		if _, err := src.ReadAt(block, sector*SectorSize); err != nil {
			return "", err
		}
		if string(block[1:6]) != StandardIDCD001 {
			break
		}
		if block[0] == 1 {
			return strings.TrimRight(string(block[isoVolumeIdentifier:isoVolumeIdentifier+32]), " \x00"), nil
		}
		if block[0] == 255 {
			break
		}
	}
	return "", fmt.Errorf("no ISO9660 primary volume descriptor")
}
