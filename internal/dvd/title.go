package dvd

import (
	"time"

	"github.com/s0up4200/go-dvdread/internal/ifo"
)

// Title is a playable title as described by the disc tables. It is not
// modified after TitleScan returns it.
type Title struct {
	// Index is the 1-based title number on the disc.
	Index int
	VTS   int
	// TTN is the title number inside its title set.
	TTN  int
	PGCN int
	// BlockCount is the number of blocks along the angle 1 path.
	BlockCount int64
	Duration   time.Duration
	AngleCount int
	Chapters   []Chapter

	// CellStart and CellEnd are the 0-based first and last PGC cells.
	CellStart int
	CellEnd   int
	Cells     []Cell
	PGC       *ifo.PGC

	Video       ifo.VideoAttributes
	Audio       []ifo.AudioAttributes
	Subpictures []ifo.SubpictureAttributes
}

// Chapter is a program of the title's program chain.
type Chapter struct {
	Index     int
	CellStart int
	CellEnd   int
	Blocks    int64
	Duration  time.Duration
}

// Cell is a PGC cell with its angle block membership resolved.
type Cell struct {
	Index       int
	FirstSector int64
	LastSector  int64
	VOBID       int
	CellID      int
	Duration    time.Duration
	// Angle is 0 outside an angle block, otherwise the 1-based angle.
	Angle  int
	Angles int
	// BlockFirst and BlockLast bound the angle block containing the cell;
	// both equal Index outside a block.
	BlockFirst int
	BlockLast  int
	// Successors maps a selected angle to the next cell. Key 0 applies to
	// every angle; -1 means there is no next cell.
	Successors map[int]int
}

// Blocks returns the number of blocks in the cell.
func (c *Cell) Blocks() int64 {
	return c.LastSector - c.FirstSector + 1
}

func (c *Cell) successor(angle int) int {
	if next, ok := c.Successors[angle]; ok {
		return next
	}
	if next, ok := c.Successors[0]; ok {
		return next
	}
	if next, ok := c.Successors[1]; ok {
		return next
	}
	return -1
}

// buildCells resolves angle blocks and successors for a program chain.
func buildCells(pgc *ifo.PGC) []Cell {
	n := len(pgc.Cells)
	cells := make([]Cell, n)
	for i, pc := range pgc.Cells {
		cells[i] = Cell{
			Index:       i,
			FirstSector: int64(pc.FirstSector),
			LastSector:  int64(pc.LastSector),
			VOBID:       pgc.Positions[i].VOBID,
			CellID:      pgc.Positions[i].CellID,
			Duration:    pc.PlaybackTime,
			BlockFirst:  i,
			BlockLast:   i,
		}
	}

	for i := 0; i < n; {
		j := i
		if pgc.Cells[i].BlockType == ifo.BlockTypeAngle && pgc.Cells[i].BlockMode == ifo.BlockModeFirst {
			for j+1 < n && pgc.Cells[j+1].BlockType == ifo.BlockTypeAngle &&
				(pgc.Cells[j+1].BlockMode == ifo.BlockModeInBlock || pgc.Cells[j+1].BlockMode == ifo.BlockModeLast) {
				j++
				if pgc.Cells[j].BlockMode == ifo.BlockModeLast {
					break
				}
			}
		}
		for k := i; k <= j; k++ {
			cells[k].BlockFirst = i
			cells[k].BlockLast = j
			if j > i {
				cells[k].Angle = k - i + 1
				cells[k].Angles = j - i + 1
			}
		}
		i = j + 1
	}

	for i := range cells {
		next := cells[i].BlockLast + 1
		switch {
		case next >= n:
			cells[i].Successors = map[int]int{0: -1}
		case cells[next].Angles > 0:
			cells[i].Successors = make(map[int]int, cells[next].Angles)
			for a := 1; a <= cells[next].Angles; a++ {
				cells[i].Successors[a] = next + a - 1
			}
		default:
			cells[i].Successors = map[int]int{0: next}
		}
	}
	return cells
}

// firstCell returns the cell playback starts at for an angle.
func (t *Title) firstCell(angle int) int {
	c := t.Cells[t.CellStart]
	if c.Angles > 0 && c.Index == c.BlockFirst {
		return c.BlockFirst + min(angle, c.Angles) - 1
	}
	return t.CellStart
}

// lastCell reports whether playback ends after cell i.
func (t *Title) lastCell(i int) bool {
	return t.Cells[i].BlockLast >= t.CellEnd
}

// path returns the cells played in order for an angle.
func (t *Title) path(angle int) []int {
	cur := t.firstCell(angle)
	cells := []int{cur}
	for !t.lastCell(cur) {
		next := t.Cells[cur].successor(angle)
		if next < 0 || next <= cur {
			break
		}
		cells = append(cells, next)
		cur = next
	}
	return cells
}

// chapterOf returns the 1-based chapter containing cell i, or 0.
func (t *Title) chapterOf(i int) int {
	if i < 0 || i >= len(t.Cells) {
		return 0
	}
	first := t.Cells[i].BlockFirst
	for _, ch := range t.Chapters {
		if first >= ch.CellStart && first <= ch.CellEnd {
			return ch.Index
		}
	}
	return 0
}

// chapterStart returns the chapter that begins at cell i, or 0.
func (t *Title) chapterStart(i int) int {
	if i < 0 || i >= len(t.Cells) {
		return 0
	}
	first := t.Cells[i].BlockFirst
	for _, ch := range t.Chapters {
		if ch.CellStart == first || ch.CellStart == i {
			return ch.Index
		}
	}
	return 0
}
