package udf

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"testing"
)

const testPartitionStart = 64

// testImage builds a small DVD style UDF 1.02 image with an ISO9660 bridge.
//
//	/VIDEO_TS/VIDEO_TS.IFO  two long_ad extents (blocks 7 and 9)
//	/VIDEO_TS/README.TXT    embedded in its ICB
func testImage(t *testing.T, udfLabel string) []byte {
	t.Helper()
	img := make([]byte, 300*SectorSize)
	sector := func(n int) []byte { return img[n*SectorSize : (n+1)*SectorSize] }
	block := func(n int) []byte { return sector(testPartitionStart + n) }

	pvd := sector(16)
	pvd[0] = 1
	copy(pvd[1:], StandardIDCD001)
	copy(pvd[isoVolumeIdentifier:], []byte("ISO_LABEL                       "))
	term := sector(17)
	term[0] = 255
	copy(term[1:], StandardIDCD001)
	copy(sector(18)[1:], StandardIDBEA01)
	copy(sector(19)[1:], StandardIDNSR02)
	copy(sector(20)[1:], StandardIDTEA01)

	putTag(sector(32), TagPrimaryVolume, 32)
	if udfLabel != "" {
		field := sector(32)[pvdVolumeIdentifier : pvdVolumeIdentifier+32]
		field[0] = 8
		copy(field[1:], udfLabel)
		field[31] = byte(len(udfLabel) + 1)
	}
	putTag(sector(33), TagPartition, 33)
	binary.LittleEndian.PutUint32(sector(33)[pdStartingLocation:], testPartitionStart)
	putTag(sector(34), TagLogicalVolume, 34)
	putLongAD(sector(34)[lvdContentsUse:], SectorSize, 0)
	putTag(sector(35), TagTerminating, 35)

	putTag(sector(256), TagAnchorVolume, 256)
	binary.LittleEndian.PutUint32(sector(256)[avdpMainExtent:], 4*SectorSize)
	binary.LittleEndian.PutUint32(sector(256)[avdpMainExtent+4:], 32)

	putTag(block(0), TagFileSet, 0)
	putLongAD(block(0)[fsdRootICB:], SectorSize, 1)

	var root []byte
	root = append(root, fid(t, "", FileCharParent|FileCharDirectory, 1)...)
	root = append(root, fid(t, "VIDEO_TS", FileCharDirectory, 3)...)
	putShortFE(block(1), ICBFileTypeDirectory, 2, len(root))
	copy(block(2), root)

	var videoTS []byte
	videoTS = append(videoTS, fid(t, "", FileCharParent|FileCharDirectory, 1)...)
	videoTS = append(videoTS, fid(t, "VIDEO_TS.IFO", 0, 5)...)
	videoTS = append(videoTS, fid(t, "OLD.BUP", FileCharDeleted, 5)...)
	videoTS = append(videoTS, fid(t, "README.TXT", 0, 6)...)
	putShortFE(block(3), ICBFileTypeDirectory, 4, len(videoTS))
	copy(block(4), videoTS)

	ifo := block(5)
	putTag(ifo, TagFile, 5)
	ifo[feFileType] = ICBFileTypeFile
	binary.LittleEndian.PutUint16(ifo[feICBFlags:], adLong)
	binary.LittleEndian.PutUint64(ifo[feInfoLen:], SectorSize+100)
	binary.LittleEndian.PutUint32(ifo[feLenAD:], 32)
	putLongAD(ifo[feBaseSize:], SectorSize, 7)
	putLongAD(ifo[feBaseSize+16:], 100, 9)

	txt := block(6)
	putTag(txt, TagFile, 6)
	txt[feFileType] = ICBFileTypeFile
	binary.LittleEndian.PutUint16(txt[feICBFlags:], adEmbedded)
	binary.LittleEndian.PutUint64(txt[feInfoLen:], 5)
	binary.LittleEndian.PutUint32(txt[feLenAD:], 5)
	copy(txt[feBaseSize:], "hello")

	copy(block(7), bytes.Repeat([]byte("a"), SectorSize))
	copy(block(7), "DVDVIDEO-VMG")
	copy(block(9), bytes.Repeat([]byte("b"), 100))
	return img
}

func putTag(b []byte, id uint16, location uint32) {
	binary.LittleEndian.PutUint16(b[0:], id)
	binary.LittleEndian.PutUint16(b[2:], 2)
	binary.LittleEndian.PutUint32(b[12:], location)
}

func putLongAD(b []byte, length, lbn uint32) {
	binary.LittleEndian.PutUint32(b[0:], length)
	binary.LittleEndian.PutUint32(b[4:], lbn)
}

func putShortFE(b []byte, fileType byte, dataBlock uint32, size int) {
	putTag(b, TagFile, 0)
	b[feFileType] = fileType
	binary.LittleEndian.PutUint16(b[feICBFlags:], adShort)
	binary.LittleEndian.PutUint64(b[feInfoLen:], uint64(size))
	binary.LittleEndian.PutUint32(b[feLenAD:], 8)
	binary.LittleEndian.PutUint32(b[feBaseSize:], uint32(size))
	binary.LittleEndian.PutUint32(b[feBaseSize+4:], dataBlock)
}

func fid(t *testing.T, name string, characteristics byte, icb uint32) []byte {
	t.Helper()
	var ident []byte
	if name != "" {
		ident = append([]byte{8}, name...)
	}
	b := make([]byte, (fidBaseSize+len(ident)+3)&^3)
	putTag(b, TagFileIdentifier, 0)
	b[fidCharacteristics] = characteristics
	b[fidLenFI] = byte(len(ident))
	putLongAD(b[fidICB:], SectorSize, icb)
	copy(b[fidBaseSize:], ident)
	return b
}

func openTestImage(t *testing.T, label string) *Reader {
	t.Helper()
	img := testImage(t, label)
	r, err := NewReaderAt(bytes.NewReader(img), int64(len(img)))
	if err != nil {
		t.Fatalf("NewReaderAt err: %v", err)
	}
	return r
}

func TestReader_VolumeLabel(t *testing.T) {
	r := openTestImage(t, "MOVIE_DISC")
	if got, want := r.VolumeLabel(), "MOVIE_DISC"; got != want {
		t.Fatalf("VolumeLabel()=%q want %q", got, want)
	}
	if got, want := r.PartitionStart(), uint32(testPartitionStart); got != want {
		t.Fatalf("PartitionStart()=%d want %d", got, want)
	}
}

func TestReader_VolumeLabelFallsBackToISO(t *testing.T) {
	r := openTestImage(t, "")
	if got, want := r.VolumeLabel(), "ISO_LABEL"; got != want {
		t.Fatalf("VolumeLabel()=%q want %q", got, want)
	}
}

func TestReader_ReadDirSkipsParentAndDeleted(t *testing.T) {
	r := openTestImage(t, "MOVIE_DISC")
	entries, err := r.ReadDir("/VIDEO_TS")
	if err != nil {
		t.Fatalf("ReadDir err: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	if len(names) != 2 || names[0] != "VIDEO_TS.IFO" || names[1] != "README.TXT" {
		t.Fatalf("names=%v", names)
	}
}

func TestReader_LookupIsCaseInsensitive(t *testing.T) {
	r := openTestImage(t, "MOVIE_DISC")
	f, err := r.Lookup("video_ts/Video_Ts.ifo")
	if err != nil {
		t.Fatalf("Lookup err: %v", err)
	}
	if f.IsDir {
		t.Fatal("IsDir=true for a file")
	}
	if got, want := f.Size(), int64(SectorSize+100); got != want {
		t.Fatalf("Size()=%d want %d", got, want)
	}
	if got, want := f.FirstSector(), int64(testPartitionStart+7); got != want {
		t.Fatalf("FirstSector()=%d want %d", got, want)
	}

	data, err := io.ReadAll(f.Open())
	if err != nil {
		t.Fatalf("ReadAll err: %v", err)
	}
	if len(data) != SectorSize+100 {
		t.Fatalf("len=%d", len(data))
	}
	if !bytes.HasPrefix(data, []byte("DVDVIDEO-VMG")) {
		t.Fatalf("prefix=%q", data[:12])
	}
	if !bytes.Equal(data[SectorSize:], bytes.Repeat([]byte("b"), 100)) {
		t.Fatal("second extent mismatch")
	}
}

func TestReader_EmbeddedFile(t *testing.T) {
	r := openTestImage(t, "MOVIE_DISC")
	f, err := r.Lookup("/VIDEO_TS/README.TXT")
	if err != nil {
		t.Fatalf("Lookup err: %v", err)
	}
	data, err := io.ReadAll(f.Open())
	if err != nil {
		t.Fatalf("ReadAll err: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("data=%q", data)
	}
	if f.FirstSector() != -1 {
		t.Fatalf("FirstSector()=%d want -1", f.FirstSector())
	}
}

func TestReader_LookupMissing(t *testing.T) {
	r := openTestImage(t, "MOVIE_DISC")
	if _, err := r.Lookup("/VIDEO_TS/VTS_01_0.IFO"); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := r.ReadDir("/VIDEO_TS/README.TXT"); err == nil {
		t.Fatal("expected error listing a file")
	}
}

func TestNewReaderAt_RejectsNonUDF(t *testing.T) {
	img := make([]byte, 300*SectorSize)
	if _, err := NewReaderAt(bytes.NewReader(img), int64(len(img))); err == nil {
		t.Fatal("expected error for blank image")
	}
}

func TestISO9660Label(t *testing.T) {
	img := testImage(t, "")
	got, err := ISO9660Label(bytes.NewReader(img))
	if err != nil {
		t.Fatalf("ISO9660Label err: %v", err)
	}
	if got != "ISO_LABEL" {
		t.Fatalf("ISO9660Label=%q", got)
	}
}

func TestDecodeString_UCS2BE(t *testing.T) {
	// compID=16 + UCS-2BE bytes for "MOVIE_DISC" + terminator
	data := []byte{
		16,
		0x00, 'M',
		0x00, 'O',
		0x00, 'V',
		0x00, 'I',
		0x00, 'E',
		0x00, '_',
		0x00, 'D',
		0x00, 'I',
		0x00, 'S',
		0x00, 'C',
		0x00, 0x00,
	}

	if got, want := decodeString(data), "MOVIE_DISC"; got != want {
		t.Fatalf("decodeString(UCS2)=%q want %q", got, want)
	}
}

func TestDecodeString_8BitStopsAtNUL(t *testing.T) {
	if got, want := decodeString([]byte{8, 'A', 'B', 0, 'C'}), "AB"; got != want {
		t.Fatalf("decodeString(8bit)=%q want %q", got, want)
	}
	if got, want := decodeString([]byte{8, 'C', 0xe9}), "Cé"; got != want {
		t.Fatalf("decodeString(latin1)=%q want %q", got, want)
	}
}

func TestDecodeDString_UsesLengthByte(t *testing.T) {
	field := make([]byte, 32)
	field[0] = 8
	copy(field[1:], "TITLEJUNK")
	field[31] = 6
	if got, want := decodeDString(field), "TITLE"; got != want {
		t.Fatalf("decodeDString=%q want %q", got, want)
	}
}

func TestExtentReader_ReadsAcrossExtents(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "udf-extents-*")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	a := bytes.Repeat([]byte("A"), 1024)
	b := bytes.Repeat([]byte("B"), 1024)

	if _, err := f.WriteAt(a, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteAt(b, 4096); err != nil {
		t.Fatal(err)
	}

	r := &Reader{src: f}
	er := &extentReader{
		reader: r,
		extents: []extent{
			{fileStart: 0, fileEnd: 1024, physOff: 0},
			{fileStart: 1024, fileEnd: 2048, physOff: 4096},
		},
		size: 2048,
	}

	got, err := io.ReadAll(er)
	if err != nil {
		t.Fatalf("ReadAll err: %v", err)
	}
	want := append(a, b...)
	if !bytes.Equal(got, want) {
		t.Fatalf("data mismatch: got len=%d want len=%d", len(got), len(want))
	}
}
