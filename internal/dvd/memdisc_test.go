package dvd

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/s0up4200/go-dvdread/internal/fs"
	"github.com/s0up4200/go-dvdread/internal/ifo"
	"github.com/s0up4200/go-dvdread/internal/ifo/ifotest"
	"github.com/s0up4200/go-dvdread/internal/navpack"
	"github.com/s0up4200/go-dvdread/internal/settings"
)

// memSource is an in-memory disc.
type memSource struct {
	label string
	files map[string][]byte
	vobs  map[int][]byte
	// failures counts the remaining failed reads per block.
	failures map[int64]int
	closed   bool
	open     int
}

func newMemSource() *memSource {
	return &memSource{
		label:    "TEST_DISC",
		files:    make(map[string][]byte),
		vobs:     make(map[int][]byte),
		failures: make(map[int64]int),
	}
}

func (s *memSource) VolumeLabel() string { return s.label }

func (s *memSource) OpenIFO(name string) (io.ReadCloser, error) {
	data, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memSource) OpenTitleVOBs(vts int) (fs.BlockReader, error) {
	data, ok := s.vobs[vts]
	if !ok {
		return nil, fmt.Errorf("title set %d: %w", vts, os.ErrNotExist)
	}
	s.open++
	return &memBlocks{src: s, data: data}, nil
}

func (s *memSource) Close() error {
	s.closed = true
	return nil
}

type memBlocks struct {
	src    *memSource
	data   []byte
	closed bool
}

var errFlaky = errors.New("flaky read")

func (b *memBlocks) ReadBlock(lba int64, p []byte) error {
	if b.closed {
		return errors.New("read after close")
	}
	if lba < 0 || lba >= b.Blocks() {
		return fmt.Errorf("block %d: %w", lba, fs.ErrOutOfRange)
	}
	if b.src.failures[lba] > 0 {
		b.src.failures[lba]--
		return errFlaky
	}
	copy(p, b.data[lba*fs.SectorSize:(lba+1)*fs.SectorSize])
	return nil
}

func (b *memBlocks) Blocks() int64 { return int64(len(b.data) / fs.SectorSize) }

func (b *memBlocks) Close() error {
	if !b.closed {
		b.closed = true
		b.src.open--
	}
	return nil
}

// vobWriter lays out cells of navigation packs and data packs.
type vobWriter struct {
	data []byte
}

func newVOB(blocks int) *vobWriter {
	return &vobWriter{data: make([]byte, blocks*fs.SectorSize)}
}

func (w *vobWriter) block(lba int64) []byte {
	return w.data[lba*fs.SectorSize : (lba+1)*fs.SectorSize]
}

// dataPack writes a non navigation pack tagged with its address.
func (w *vobWriter) dataPack(lba int64) {
	b := w.block(lba)
	copy(b, []byte{0x00, 0x00, 0x01, 0xba})
	binary.BigEndian.PutUint64(b[0x20:], uint64(lba))
}

func (w *vobWriter) navPack(lba int64, dsi navpack.DSI) {
	dsi.NavPackLBN = uint32(lba)
	copy(w.block(lba), navpack.Encode(navpack.NavPack{PCI: navpack.PCI{NavPackLBN: uint32(lba)}, DSI: dsi}))
}

// cell fills [first, last] with VOBUs of up to size packs.
func (w *vobWriter) cell(first, last int64, vobID, cellID int, size int64) {
	for start := first; start <= last; start += size {
		n := min(size, last-start+1)
		next := navpack.NextVOBU(uint32(n))
		if start+n > last {
			next = navpack.SRIEndOfCell
		}
		w.navPack(start, navpack.DSI{VOBUEA: uint32(n - 1), VOBID: vobID, CellID: cellID, NextVOBU: next})
		for lba := start + 1; lba < start+n; lba++ {
			w.dataPack(lba)
		}
	}
}

type testCell struct {
	first, last int64
	mode, typ   int
}

// buildDisc creates a one title disc whose cells each use their own VOB id.
func buildDisc(t *testing.T, angles int, programMap []int, cells []testCell, vobuSize int64) *memSource {
	t.Helper()
	var last int64
	var pgcCells []ifotest.Cell
	for i, c := range cells {
		last = max(last, c.last)
		pgcCells = append(pgcCells, ifotest.Cell{
			BlockMode: c.mode,
			BlockType: c.typ,
			First:     uint32(c.first),
			Last:      uint32(c.last),
			VOBID:     1,
			CellID:    i + 1,
			Duration:  time.Duration(c.last-c.first+1) * time.Second,
		})
	}

	vob := newVOB(int(last) + 1)
	for i, c := range cells {
		vob.cell(c.first, c.last, 1, i+1, vobuSize)
	}

	var parts []ifotest.Part
	for pgn := range programMap {
		parts = append(parts, ifotest.Part{PGCN: 1, PGN: pgn + 1})
	}

	src := newMemSource()
	src.files["VIDEO_TS.IFO"] = ifotest.VMG(1, []ifotest.Title{{VTS: 1, VTSTitle: 1, Angles: angles, Parts: len(parts)}})
	src.files["VTS_01_0.IFO"] = ifotest.VTS(ifotest.VTSOptions{}, [][]ifotest.Part{parts},
		[]ifotest.PGC{{ProgramMap: programMap, Cells: pgcCells}})
	src.vobs[1] = vob.data
	return src
}

// chapterDisc has 30 four block cells in three chapters of ten cells.
func chapterDisc(t *testing.T) *memSource {
	t.Helper()
	var cells []testCell
	for i := range 30 {
		cells = append(cells, testCell{first: int64(i * 4), last: int64(i*4 + 3)})
	}
	return buildDisc(t, 1, []int{1, 11, 21}, cells, 4)
}

// angleDisc has a two angle block between two normal cells:
//
//	cell 0 [0,9] | cell 1 angle 1 [10,19] | cell 2 angle 2 [20,29] | cell 3 [30,39]
func angleDisc(t *testing.T) *memSource {
	t.Helper()
	return buildDisc(t, 2, []int{1, 4}, []testCell{
		{first: 0, last: 9},
		{first: 10, last: 19, mode: ifo.BlockModeFirst, typ: ifo.BlockTypeAngle},
		{first: 20, last: 29, mode: ifo.BlockModeLast, typ: ifo.BlockTypeAngle},
		{first: 30, last: 39},
	}, 5)
}

func openMem(t *testing.T, src *memSource, mutate ...func(*settings.Settings)) *dvdRead {
	t.Helper()
	cfg := settings.Default(t.TempDir())
	for _, m := range mutate {
		m(&cfg)
	}
	d, err := newDVDRead(src, newOptions([]Option{WithSettings(cfg)}))
	if err != nil {
		t.Fatalf("newDVDRead err: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func scanTitle(t *testing.T, d Disc, index int) *Title {
	t.Helper()
	title, err := d.TitleScan(index, 0)
	if err != nil {
		t.Fatalf("TitleScan(%d) err: %v", index, err)
	}
	return title
}

func startTitle(t *testing.T, d Disc, index, angle int) *Title {
	t.Helper()
	title := scanTitle(t, d, index)
	if err := d.Start(title, angle); err != nil {
		t.Fatalf("Start err: %v", err)
	}
	return title
}

// readAll reads packs until the end of the title.
func readAll(t *testing.T, d Disc) []*Pack {
	t.Helper()
	var packs []*Pack
	for range 100000 {
		p, err := d.Read()
		if errors.Is(err, ErrEndOfTitle) {
			return packs
		}
		if err != nil {
			t.Fatalf("Read err after %d packs: %v", len(packs), err)
		}
		packs = append(packs, p)
	}
	t.Fatal("title did not end")
	return nil
}

func lbas(packs []*Pack) []int64 {
	out := make([]int64, 0, len(packs))
	for _, p := range packs {
		out = append(out, p.LBA)
	}
	return out
}

func lbaRange(ranges ...[2]int64) []int64 {
	var out []int64
	for _, r := range ranges {
		for lba := r[0]; lba <= r[1]; lba++ {
			out = append(out, lba)
		}
	}
	return out
}

func equalLBAs(got, want []int64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// writeDiscFolder writes a memSource to a VIDEO_TS folder on disk.
func writeDiscFolder(t *testing.T, src *memSource) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), src.label)
	dir := filepath.Join(root, "VIDEO_TS")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for name, data := range src.files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	for vts, data := range src.vobs {
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("VTS_%02d_1.VOB", vts)), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}
