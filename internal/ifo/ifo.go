// Package ifo parses the DVD-Video information files (VIDEO_TS.IFO and
// VTS_xx_0.IFO): title tables, part-of-title tables and program chains.
package ifo

import (
	"errors"
	"fmt"
	"time"

	"github.com/s0up4200/go-dvdread/internal/util"
)

const sectorSize = 2048

const (
	vmgIdentifier = "DVDVIDEO-VMG"
	vtsIdentifier = "DVDVIDEO-VTS"
)

// ErrInvalid is returned for tables that are truncated or inconsistent.
var ErrInvalid = errors.New("invalid IFO")

// Cell block modes.
const (
	BlockModeNone    = 0
	BlockModeFirst   = 1
	BlockModeInBlock = 2
	BlockModeLast    = 3
)

// BlockTypeAngle marks cells of an angle block.
const BlockTypeAngle = 1

// VMG is the video manager: the disc wide title table.
type VMG struct {
	ProviderID string
	TitleSets  int
	Titles     []TitleEntry
}

// TitleEntry is one row of the title search pointer table.
type TitleEntry struct {
	PlaybackType byte
	Angles       int
	Parts        int
	ParentalID   uint16
	VTS          int
	VTSTitle     int
	StartSector  uint32
}

// VTS is a video title set.
type VTS struct {
	TitleVOBSector uint32
	Video          VideoAttributes
	Audio          []AudioAttributes
	Subpictures    []SubpictureAttributes
	// PTT holds the parts of each VTS title, indexed by VTS title number - 1.
	PTT  [][]PartOfTitle
	PGCs []*PGC
}

// PartOfTitle points a chapter at a program of a program chain.
type PartOfTitle struct {
	PGCN int
	PGN  int
}

// PGC is a program chain.
type PGC struct {
	Programs     int
	PlaybackTime time.Duration
	// ProgramMap holds the 1-based entry cell of each program.
	ProgramMap []int
	Cells      []CellPlayback
	Positions  []CellPosition
	NextPGCN   int
	PrevPGCN   int
	GoUpPGCN   int
}

// CellPlayback is one entry of a PGC's cell playback table. Sector numbers
// are relative to the start of the title VOB set.
type CellPlayback struct {
	BlockMode        int
	BlockType        int
	Seamless         bool
	Interleaved      bool
	STCDiscontinuity bool
	SeamlessAngle    bool
	PlaybackTime     time.Duration
	FirstSector      uint32
	FirstILVUEnd     uint32
	LastVOBUStart    uint32
	LastSector       uint32
}

// CellPosition ties a cell to its VOB and cell ids.
type CellPosition struct {
	VOBID  int
	CellID int
}

type VideoAttributes struct {
	Format      string
	AspectRatio string
}

type AudioAttributes struct {
	Format   string
	Language string
	Channels int
}

type SubpictureAttributes struct {
	Language string
}

// table reads big-endian fields and remembers the first out of range access.
type table struct {
	data []byte
	err  error
}

func (t *table) fail(off, n int) {
	if t.err == nil {
		t.err = fmt.Errorf("%w: read of %d bytes at 0x%x past end (%d)", ErrInvalid, n, off, len(t.data))
	}
}

func (t *table) u8(off int) int {
	if off < 0 || off >= len(t.data) {
		t.fail(off, 1)
		return 0
	}
	return int(t.data[off])
}

func (t *table) u16(off int) int {
	v, ok := util.Uint16At(t.data, off)
	if !ok {
		t.fail(off, 2)
	}
	return int(v)
}

func (t *table) u32(off int) uint32 {
	v, ok := util.Uint32At(t.data, off)
	if !ok {
		t.fail(off, 4)
	}
	return v
}

func (t *table) bytes(off, n int) []byte {
	if off < 0 || n < 0 || off+n > len(t.data) {
		t.fail(off, n)
		return make([]byte, n)
	}
	return t.data[off : off+n]
}

func (t *table) text(off, n int) string {
	pos := 0
	return util.ReadString(t.bytes(off, n), n, &pos)
}

// ParseVMG parses VIDEO_TS.IFO.
func ParseVMG(data []byte) (*VMG, error) {
	t := &table{data: data}
	if id := t.text(0, 12); id != vmgIdentifier {
		return nil, fmt.Errorf("%w: identifier %q", ErrInvalid, id)
	}
	vmg := &VMG{
		TitleSets:  t.u16(0x3E),
		ProviderID: t.text(0x40, 32),
	}

	srpt := int(t.u32(0xC4)) * sectorSize
	count := t.u16(srpt)
	if t.err != nil {
		return nil, t.err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: empty title table", ErrInvalid)
	}
	vmg.Titles = make([]TitleEntry, 0, count)
	for i := range count {
		off := srpt + 8 + i*12
		vmg.Titles = append(vmg.Titles, TitleEntry{
			PlaybackType: byte(t.u8(off)),
			Angles:       t.u8(off + 1),
			Parts:        t.u16(off + 2),
			ParentalID:   uint16(t.u16(off + 4)),
			VTS:          t.u8(off + 6),
			VTSTitle:     t.u8(off + 7),
			StartSector:  t.u32(off + 8),
		})
		if t.err != nil {
			return nil, t.err
		}
	}
	return vmg, nil
}

// ParseVTS parses a VTS_xx_0.IFO.
func ParseVTS(data []byte) (*VTS, error) {
	t := &table{data: data}
	if id := t.text(0, 12); id != vtsIdentifier {
		return nil, fmt.Errorf("%w: identifier %q", ErrInvalid, id)
	}
	vts := &VTS{TitleVOBSector: t.u32(0xC4)}
	parseAttributes(t, vts)

	ptt, err := parsePTT(t, int(t.u32(0xC8))*sectorSize)
	if err != nil {
		return nil, fmt.Errorf("part of title table: %w", err)
	}
	vts.PTT = ptt

	pgcs, err := parsePGCIT(t, int(t.u32(0xCC))*sectorSize)
	if err != nil {
		return nil, fmt.Errorf("program chain table: %w", err)
	}
	vts.PGCs = pgcs
	return vts, nil
}

func parsePTT(t *table, base int) ([][]PartOfTitle, error) {
	count := t.u16(base)
	lastByte := int(t.u32(base + 4))
	if t.err != nil {
		return nil, t.err
	}

	offsets := make([]int, count)
	for i := range count {
		offsets[i] = int(t.u32(base + 8 + i*4))
	}
	if t.err != nil {
		return nil, t.err
	}

	titles := make([][]PartOfTitle, count)
	for i := range count {
		end := lastByte + 1
		if i+1 < count {
			end = offsets[i+1]
		}
		if end < offsets[i] {
			return nil, fmt.Errorf("%w: title %d offsets out of order", ErrInvalid, i+1)
		}
		parts := (end - offsets[i]) / 4
		if base+offsets[i]+parts*4 > len(t.data) {
			return nil, fmt.Errorf("%w: title %d parts run past end of table", ErrInvalid, i+1)
		}
		for p := range parts {
			off := base + offsets[i] + p*4
			titles[i] = append(titles[i], PartOfTitle{PGCN: t.u16(off), PGN: t.u16(off + 2)})
		}
		if t.err != nil {
			return nil, t.err
		}
	}
	return titles, nil
}

func parsePGCIT(t *table, base int) ([]*PGC, error) {
	count := t.u16(base)
	if t.err != nil {
		return nil, t.err
	}
	pgcs := make([]*PGC, 0, count)
	for i := range count {
		start := int(t.u32(base + 8 + i*8 + 4))
		if t.err != nil {
			return nil, t.err
		}
		pgc, err := parsePGC(t, base+start)
		if err != nil {
			return nil, fmt.Errorf("pgc %d: %w", i+1, err)
		}
		pgcs = append(pgcs, pgc)
	}
	return pgcs, nil
}

func parsePGC(t *table, base int) (*PGC, error) {
	pgc := &PGC{
		Programs:     t.u8(base + 2),
		PlaybackTime: util.DVDTime(t.bytes(base+4, 4)),
		NextPGCN:     t.u16(base + 0x9C),
		PrevPGCN:     t.u16(base + 0x9E),
		GoUpPGCN:     t.u16(base + 0xA0),
	}
	cells := t.u8(base + 3)
	programMap := t.u16(base + 0xE6)
	cellPlayback := t.u16(base + 0xE8)
	cellPosition := t.u16(base + 0xEA)
	if t.err != nil {
		return nil, t.err
	}

	if pgc.Programs > 0 {
		if programMap == 0 {
			return nil, fmt.Errorf("%w: %d programs without program map", ErrInvalid, pgc.Programs)
		}
		for i := range pgc.Programs {
			pgc.ProgramMap = append(pgc.ProgramMap, t.u8(base+programMap+i))
		}
	}

	if cells > 0 {
		if cellPlayback == 0 || cellPosition == 0 {
			return nil, fmt.Errorf("%w: %d cells without cell tables", ErrInvalid, cells)
		}
		for i := range cells {
			pgc.Cells = append(pgc.Cells, parseCellPlayback(t, base+cellPlayback+i*24))
			off := base + cellPosition + i*4
			pgc.Positions = append(pgc.Positions, CellPosition{VOBID: t.u16(off), CellID: t.u8(off + 3)})
		}
	}
	if t.err != nil {
		return nil, t.err
	}

	for i, cell := range pgc.ProgramMap {
		if cell < 1 || cell > len(pgc.Cells) {
			return nil, fmt.Errorf("%w: program %d entry cell %d of %d", ErrInvalid, i+1, cell, len(pgc.Cells))
		}
	}
	return pgc, nil
}

func parseCellPlayback(t *table, off int) CellPlayback {
	flags := t.u8(off)
	return CellPlayback{
		BlockMode:        flags >> 6,
		BlockType:        (flags >> 4) & 0x3,
		Seamless:         flags&0x08 != 0,
		Interleaved:      flags&0x04 != 0,
		STCDiscontinuity: flags&0x02 != 0,
		SeamlessAngle:    flags&0x01 != 0,
		PlaybackTime:     util.DVDTime(t.bytes(off+4, 4)),
		FirstSector:      t.u32(off + 8),
		FirstILVUEnd:     t.u32(off + 12),
		LastVOBUStart:    t.u32(off + 16),
		LastSector:       t.u32(off + 20),
	}
}

var audioFormats = map[int]string{
	0: "AC3",
	2: "MPEG1",
	3: "MPEG2",
	4: "LPCM",
	6: "DTS",
}

// parseAttributes reads the title set stream attributes. Missing data leaves
// the fields empty and does not fail the parse.
func parseAttributes(t *table, vts *VTS) {
	if len(t.data) < 0x256+32*6 {
		return
	}
	video := t.u16(0x200)
	vts.Video.Format = "NTSC"
	if (video>>12)&0x3 == 1 {
		vts.Video.Format = "PAL"
	}
	vts.Video.AspectRatio = "4:3"
	if (video>>10)&0x3 == 3 {
		vts.Video.AspectRatio = "16:9"
	}

	for i := range min(t.u16(0x202), 8) {
		off := 0x204 + i*8
		format, ok := audioFormats[t.u8(off)>>5]
		if !ok {
			format = "Unknown"
		}
		vts.Audio = append(vts.Audio, AudioAttributes{
			Format:   format,
			Language: language(t.bytes(off+2, 2)),
			Channels: t.u8(off+1)&0x7 + 1,
		})
	}
	for i := range min(t.u16(0x254), 32) {
		off := 0x256 + i*6
		vts.Subpictures = append(vts.Subpictures, SubpictureAttributes{Language: language(t.bytes(off+2, 2))})
	}
}

func language(code []byte) string {
	if len(code) != 2 || code[0] < 'a' || code[0] > 'z' || code[1] < 'a' || code[1] > 'z' {
		return ""
	}
	return string(code)
}

// ProgramCells returns the first and last 0-based cell index of program pgn.
func (p *PGC) ProgramCells(pgn int) (first, last int, ok bool) {
	if pgn < 1 || pgn > len(p.ProgramMap) || len(p.Cells) == 0 {
		return 0, 0, false
	}
	first = p.ProgramMap[pgn-1] - 1
	if pgn == len(p.ProgramMap) {
		last = len(p.Cells) - 1
	} else {
		last = p.ProgramMap[pgn] - 2
	}
	if last < first {
		return 0, 0, false
	}
	return first, last, true
}
