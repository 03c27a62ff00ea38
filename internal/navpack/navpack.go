// Package navpack recognises DVD navigation packs and extracts the PCI and
// DSI fields a block navigator needs.
package navpack

import (
	"errors"
	"fmt"
	"time"

	"github.com/s0up4200/go-dvdread/internal/buffer"
	"github.com/s0up4200/go-dvdread/internal/util"
)

const (
	PackSize = 2048

	pciPacket = 0x26
	dsiPacket = 0x400
	// PCIStart and DSIStart are the offsets of the packet payloads.
	PCIStart = 0x2d
	DSIStart = 0x407
)

// SRIEndOfCell is the next/previous VOBU value that marks a cell boundary.
const SRIEndOfCell = 0x3fffffff

// sriValid is set on every usable search offset.
const sriValid = 0x80000000

// Interleaved unit category flags of the seamless playback information.
const (
	CategoryPREU      = 0x8000
	CategoryILVU      = 0x4000
	CategoryUnitStart = 0x2000
	CategoryUnitEnd   = 0x1000
)

// ErrNotNavPack is returned by Parse for packs without PCI and DSI packets.
var ErrNotNavPack = errors.New("not a navigation pack")

// PCI is the presentation control information of a VOBU.
type PCI struct {
	NavPackLBN   uint32
	VOBUStartPTM uint32
	VOBUEndPTM   uint32
}

// AngleLink points at the interleaved unit of another angle.
type AngleLink struct {
	Address uint32
	Size    uint16
}

// DSI is the data search information of a VOBU. Addresses are relative to
// NavPackLBN unless stated otherwise.
type DSI struct {
	SCR         uint32
	NavPackLBN  uint32
	VOBUEA      uint32
	VOBID       int
	CellID      int
	CellElapsed time.Duration

	Category      uint16
	ILVUEA        uint32
	NextILVUStart uint32
	ILVUSize      uint16
	Angles        [9]AngleLink

	NextVOBU uint32
	PrevVOBU uint32
}

// NavPack is a parsed navigation pack.
type NavPack struct {
	PCI PCI
	DSI DSI
}

// IsNavPack reports whether a 2048 byte pack carries PCI and DSI packets.
func IsNavPack(buf []byte) bool {
	if len(buf) < PackSize {
		return false
	}
	return buf[pciPacket] == 0 && buf[pciPacket+1] == 0 && buf[pciPacket+2] == 1 && buf[pciPacket+3] == 0xbf &&
		buf[pciPacket+6] == 0x00 &&
		buf[dsiPacket] == 0 && buf[dsiPacket+1] == 0 && buf[dsiPacket+2] == 1 && buf[dsiPacket+3] == 0xbf &&
		buf[dsiPacket+6] == 0x01
}

// Parse extracts the PCI and DSI fields of a navigation pack.
func Parse(buf []byte) (*NavPack, error) {
	if !IsNavPack(buf) {
		return nil, ErrNotNavPack
	}
	np := &NavPack{}
	if err := parsePCI(buf, &np.PCI); err != nil {
		return nil, fmt.Errorf("pci: %w", err)
	}
	if err := parseDSI(buf, &np.DSI); err != nil {
		return nil, fmt.Errorf("dsi: %w", err)
	}
	return np, nil
}

var errShort = errors.New("truncated packet")

func parsePCI(buf []byte, pci *PCI) error {
	br := buffer.NewBitReader(buf)
	if !br.SetBytePosition(PCIStart) {
		return errShort
	}
	var ok bool
	if pci.NavPackLBN, ok = br.ReadUInt32(); !ok {
		return errShort
	}
	// vobu_cat, zero, vobu_uop_ctl
	if !br.SkipBytes(8) {
		return errShort
	}
	if pci.VOBUStartPTM, ok = br.ReadUInt32(); !ok {
		return errShort
	}
	if pci.VOBUEndPTM, ok = br.ReadUInt32(); !ok {
		return errShort
	}
	return nil
}

func parseDSI(buf []byte, dsi *DSI) error {
	br := buffer.NewBitReader(buf)
	ok := br.SetBytePosition(DSIStart)

	read32 := func() uint32 {
		v, more := br.ReadUInt32()
		ok = ok && more
		return v
	}
	read16 := func() uint16 {
		v, more := br.ReadUInt16()
		ok = ok && more
		return v
	}
	read8 := func() byte {
		v, more := br.ReadByteValue()
		ok = ok && more
		return v
	}

	dsi.SCR = read32()
	dsi.NavPackLBN = read32()
	dsi.VOBUEA = read32()
	// first, second and third reference frame end addresses
	ok = ok && br.SkipBytes(12)
	dsi.VOBID = int(read16())
	read8()
	dsi.CellID = int(read8())
	elapsed, more := br.ReadBytes(4)
	ok = ok && more
	dsi.CellElapsed = util.DVDTime(elapsed)

	dsi.Category = read16()
	dsi.ILVUEA = read32()
	dsi.NextILVUStart = read32()
	dsi.ILVUSize = read16()

	ok = ok && br.SetBytePosition(DSIStart+180)
	for i := range dsi.Angles {
		dsi.Angles[i] = AngleLink{Address: read32(), Size: read16()}
	}

	ok = ok && br.SetBytePosition(DSIStart+314)
	dsi.NextVOBU = read32()
	dsi.PrevVOBU = read32()
	if !ok {
		return errShort
	}
	return nil
}

// EndOfCell reports whether this VOBU is the last one of its cell.
func (d *DSI) EndOfCell() bool {
	return d.NextVOBU&SRIEndOfCell == SRIEndOfCell
}

// NextVOBUOffset returns the offset of the next VOBU relative to NavPackLBN.
func (d *DSI) NextVOBUOffset() (uint32, bool) {
	if d.NextVOBU&sriValid == 0 || d.EndOfCell() {
		return 0, false
	}
	return d.NextVOBU & SRIEndOfCell, true
}

// ILVUEnd reports whether this VOBU ends an interleaved unit.
func (d *DSI) ILVUEnd() bool {
	return d.Category&CategoryILVU != 0 && d.Category&CategoryUnitEnd != 0
}
