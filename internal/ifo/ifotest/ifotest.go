// Package ifotest builds synthetic IFO files for tests.
package ifotest

import (
	"encoding/binary"
	"time"

	"github.com/s0up4200/go-dvdread/internal/navpack"
)

const sectorSize = 2048

// Title is a row of the VMG title table.
type Title struct {
	VTS      int
	VTSTitle int
	Angles   int
	Parts    int
}

// Cell describes one cell playback and position entry.
type Cell struct {
	BlockMode int
	BlockType int
	First     uint32
	Last      uint32
	VOBID     int
	CellID    int
	Duration  time.Duration
}

// PGC describes a program chain.
type PGC struct {
	ProgramMap []int
	Cells      []Cell
	Duration   time.Duration
}

// Part is a part-of-title entry.
type Part struct {
	PGCN int
	PGN  int
}

// VTSOptions holds the optional stream attributes of a title set.
type VTSOptions struct {
	PAL            bool
	Widescreen     bool
	AudioLanguages []string
	SubLanguages   []string
}

// VMG returns a VIDEO_TS.IFO image.
func VMG(titleSets int, titles []Title) []byte {
	buf := make([]byte, 2*sectorSize)
	copy(buf, "DVDVIDEO-VMG")
	binary.BigEndian.PutUint16(buf[0x3E:], uint16(titleSets))
	copy(buf[0x40:], "TEST PROVIDER")
	binary.BigEndian.PutUint32(buf[0xC4:], 1)

	srpt := buf[sectorSize:]
	binary.BigEndian.PutUint16(srpt[0:], uint16(len(titles)))
	binary.BigEndian.PutUint32(srpt[4:], uint32(8+len(titles)*12-1))
	for i, t := range titles {
		e := srpt[8+i*12:]
		e[0] = 0x3c
		e[1] = byte(t.Angles)
		binary.BigEndian.PutUint16(e[2:], uint16(t.Parts))
		e[6] = byte(t.VTS)
		e[7] = byte(t.VTSTitle)
	}
	return buf
}

// VTS returns a VTS_xx_0.IFO image with one PTT list per VTS title.
func VTS(opts VTSOptions, ptt [][]Part, pgcs []PGC) []byte {
	pttData := encodePTT(ptt)
	pgcit := encodePGCIT(pgcs)

	pttSector := 1
	pgcitSector := pttSector + sectors(len(pttData))
	buf := make([]byte, (pgcitSector+sectors(len(pgcit)))*sectorSize)
	copy(buf, "DVDVIDEO-VTS")
	binary.BigEndian.PutUint32(buf[0xC8:], uint32(pttSector))
	binary.BigEndian.PutUint32(buf[0xCC:], uint32(pgcitSector))

	var video uint16
	if opts.PAL {
		video |= 1 << 12
	}
	if opts.Widescreen {
		video |= 3 << 10
	}
	binary.BigEndian.PutUint16(buf[0x200:], video)
	binary.BigEndian.PutUint16(buf[0x202:], uint16(len(opts.AudioLanguages)))
	for i, lang := range opts.AudioLanguages {
		off := 0x204 + i*8
		buf[off] = 0x00 // AC3
		buf[off+1] = 5  // 6 channels
		copy(buf[off+2:], lang)
	}
	binary.BigEndian.PutUint16(buf[0x254:], uint16(len(opts.SubLanguages)))
	for i, lang := range opts.SubLanguages {
		copy(buf[0x256+i*6+2:], lang)
	}

	copy(buf[pttSector*sectorSize:], pttData)
	copy(buf[pgcitSector*sectorSize:], pgcit)
	return buf
}

func sectors(n int) int {
	return (n + sectorSize - 1) / sectorSize
}

func encodePTT(ptt [][]Part) []byte {
	header := 8 + 4*len(ptt)
	out := make([]byte, header)
	binary.BigEndian.PutUint16(out[0:], uint16(len(ptt)))
	for i, parts := range ptt {
		binary.BigEndian.PutUint32(out[8+i*4:], uint32(len(out)))
		for _, p := range parts {
			out = binary.BigEndian.AppendUint16(out, uint16(p.PGCN))
			out = binary.BigEndian.AppendUint16(out, uint16(p.PGN))
		}
	}
	binary.BigEndian.PutUint32(out[4:], uint32(len(out)-1))
	return out
}

func encodePGCIT(pgcs []PGC) []byte {
	out := make([]byte, 8+8*len(pgcs))
	binary.BigEndian.PutUint16(out[0:], uint16(len(pgcs)))
	for i, pgc := range pgcs {
		srp := out[8+i*8:]
		srp[0] = 0x80 | byte(i+1)
		binary.BigEndian.PutUint32(srp[4:], uint32(len(out)))
		out = append(out, encodePGC(pgc)...)
	}
	binary.BigEndian.PutUint32(out[4:], uint32(len(out)-1))
	return out
}

func encodePGC(pgc PGC) []byte {
	programMap := 0xEC
	cellPlayback := (programMap + len(pgc.ProgramMap) + 3) &^ 3
	cellPosition := cellPlayback + 24*len(pgc.Cells)
	out := make([]byte, cellPosition+4*len(pgc.Cells))

	out[2] = byte(len(pgc.ProgramMap))
	out[3] = byte(len(pgc.Cells))
	copy(out[4:], BCDTime(pgc.Duration))
	binary.BigEndian.PutUint16(out[0xE6:], uint16(programMap))
	binary.BigEndian.PutUint16(out[0xE8:], uint16(cellPlayback))
	binary.BigEndian.PutUint16(out[0xEA:], uint16(cellPosition))

	for i, cell := range pgc.ProgramMap {
		out[programMap+i] = byte(cell)
	}
	for i, c := range pgc.Cells {
		e := out[cellPlayback+i*24:]
		e[0] = byte(c.BlockMode<<6 | c.BlockType<<4)
		copy(e[4:], BCDTime(c.Duration))
		binary.BigEndian.PutUint32(e[8:], c.First)
		binary.BigEndian.PutUint32(e[16:], c.Last)
		binary.BigEndian.PutUint32(e[20:], c.Last)

		p := out[cellPosition+i*4:]
		binary.BigEndian.PutUint16(p[0:], uint16(c.VOBID))
		p[3] = byte(c.CellID)
	}
	return out
}

// BCDTime encodes a duration as a 25 fps BCD playback time.
func BCDTime(d time.Duration) []byte {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	frames := int(d%time.Second) * 25 / int(time.Second)
	return []byte{bcd(h), bcd(m), bcd(s), 0x40 | bcd(frames)}
}

func bcd(v int) byte {
	return byte(v/10<<4 | v%10)
}

// VOB returns a title VOB image holding the cells' sectors. Each cell is cut
// into VOBUs of up to vobuSize packs, each starting with a navigation pack.
func VOB(cells []Cell, vobuSize uint32) []byte {
	var end uint32
	for _, c := range cells {
		end = max(end, c.Last+1)
	}
	buf := make([]byte, int(end)*sectorSize)
	for _, c := range cells {
		for start := c.First; start <= c.Last; start += vobuSize {
			n := min(vobuSize, c.Last-start+1)
			next := navpack.NextVOBU(n)
			if start+n > c.Last {
				next = navpack.SRIEndOfCell
			}
			np := navpack.NavPack{
				PCI: navpack.PCI{NavPackLBN: start},
				DSI: navpack.DSI{NavPackLBN: start, VOBUEA: n - 1, VOBID: c.VOBID, CellID: c.CellID, NextVOBU: next},
			}
			copy(buf[int(start)*sectorSize:], navpack.Encode(np))
			for lba := start + 1; lba < start+n; lba++ {
				copy(buf[int(lba)*sectorSize:], []byte{0x00, 0x00, 0x01, 0xba})
			}
		}
	}
	return buf
}
