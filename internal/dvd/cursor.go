package dvd

import (
	"github.com/s0up4200/go-dvdread/internal/navpack"
)

type cursorState int

const (
	// stateUnsynchronized scans forward for a navigation pack.
	stateUnsynchronized cursorState = iota
	// stateSynchronized emits the packs of a known VOBU.
	stateSynchronized
	// stateCellBoundary picks the next cell on the following read.
	stateCellBoundary
	stateEnded
)

func (s cursorState) String() string {
	switch s {
	case stateUnsynchronized:
		return "unsynchronized"
	case stateSynchronized:
		return "synchronized"
	case stateCellBoundary:
		return "cell boundary"
	case stateEnded:
		return "ended"
	}
	return "unknown"
}

// maxVOBUPacks bounds the end address of a sane VOBU.
const maxVOBUPacks = 1024

// cursor is the playback position of the raw navigator.
type cursor struct {
	state cursorState
	title *Title
	angle int

	cell      int
	cellFirst int64
	cellLast  int64
	// overlap is set while the current cell is part of an angle block.
	overlap bool
	inCell  bool
	newCell bool

	// block is the next block to read.
	block int64
	// remaining counts the packs of the current VOBU not yet returned.
	remaining int64
	// nextVOBU is the nav pack address of the following VOBU, -1 if unknown.
	nextVOBU  int64
	endOfCell bool
	// expectNav is set when block should hold a nav pack.
	expectNav bool

	vobID  int
	cellID int
}

func (c *cursor) start(t *Title, angle int) {
	*c = cursor{title: t, angle: angle}
	c.enterCell(t.firstCell(angle))
}

func (c *cursor) enterCell(i int) {
	cell := &c.title.Cells[i]
	c.cell = i
	c.cellFirst = cell.FirstSector
	c.cellLast = cell.LastSector
	c.overlap = cell.Angles > 0
	c.inCell = false
	c.newCell = true
	c.block = cell.FirstSector
	c.remaining = 0
	c.nextVOBU = -1
	c.endOfCell = false
	c.expectNav = true
	c.vobID = 0
	c.cellID = 0
	c.state = stateUnsynchronized
}

// seekTo places the cursor inside cell i at an absolute block.
func (c *cursor) seekTo(i int, block int64) {
	c.enterCell(i)
	c.block = block
	c.newCell = block == c.cellFirst
	c.expectNav = false
}

// synced records the VOBU described by a navigation pack at c.block.
func (c *cursor) synced(np *navpack.NavPack) {
	dsi := &np.DSI
	c.state = stateSynchronized
	c.inCell = true
	c.remaining = int64(dsi.VOBUEA)
	c.vobID = dsi.VOBID
	c.cellID = dsi.CellID
	c.expectNav = false

	c.endOfCell = dsi.EndOfCell()
	c.nextVOBU = nextVOBUAddress(dsi)
}

// nextVOBUAddress resolves where the VOBU after dsi starts. Interleaved units
// jump to the next unit of the same angle.
func nextVOBUAddress(dsi *navpack.DSI) int64 {
	lbn := int64(dsi.NavPackLBN)
	switch offset, ok := dsi.NextVOBUOffset(); {
	case dsi.ILVUEnd() && dsi.NextILVUStart != 0:
		return lbn + int64(dsi.NextILVUStart)
	case ok:
		return lbn + int64(offset)
	default:
		return lbn + int64(dsi.VOBUEA) + 1
	}
}

// vobuDone moves on once every pack of the VOBU has been returned.
func (c *cursor) vobuDone() {
	if c.endOfCell || c.nextVOBU > c.cellLast {
		c.state = stateCellBoundary
		return
	}
	c.block = c.nextVOBU
	c.expectNav = true
	c.state = stateUnsynchronized
}

// advance resolves the next cell at a boundary for the selected angle.
func (c *cursor) advance() (next int, ended bool) {
	if c.title.lastCell(c.cell) {
		c.end()
		return -1, true
	}
	next = c.title.Cells[c.cell].successor(c.angle)
	if next < 0 || next <= c.cell {
		c.end()
		return -1, true
	}
	c.enterCell(next)
	return next, false
}

func (c *cursor) end() {
	c.state = stateEnded
	c.remaining = 0
	c.inCell = false
}

// expects reports whether a navigation pack belongs to the current cell.
func (c *cursor) expects(dsi *navpack.DSI) bool {
	cell := &c.title.Cells[c.cell]
	return dsi.VOBID == cell.VOBID && dsi.CellID == cell.CellID
}
