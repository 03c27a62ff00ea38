package dvd

import (
	"errors"
	"fmt"
	"math"

	"github.com/hashicorp/go-hclog"

	"github.com/s0up4200/go-dvdread/internal/fs"
	"github.com/s0up4200/go-dvdread/internal/ifo"
	"github.com/s0up4200/go-dvdread/internal/navpack"
	"github.com/s0up4200/go-dvdread/internal/settings"
)

// dvdRead is the raw block navigator. It reads title VOB blocks directly and
// follows the program chain cell by cell.
type dvdRead struct {
	src      fs.Source
	vmg      *ifo.VMG
	vtsCache map[int]*ifo.VTS
	log      hclog.Logger
	settings settings.Settings

	title  *Title
	vobs   fs.BlockReader
	cur    cursor
	closed bool
}

func openDVDRead(path string, o options) (*dvdRead, error) {
	src, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	d, err := newDVDRead(src, o)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	return d, nil
}

func newDVDRead(src fs.Source, o options) (*dvdRead, error) {
	vmg, err := ifo.ReadVMG(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	d := &dvdRead{
		src:      src,
		vmg:      vmg,
		vtsCache: make(map[int]*ifo.VTS),
		log:      o.logger.Named("dvdread"),
		settings: o.settings,
	}
	d.cur.state = stateEnded
	d.log.Debug("opened disc", "label", src.VolumeLabel(), "titles", len(vmg.Titles), "title_sets", vmg.TitleSets)
	return d, nil
}

func (d *dvdRead) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.Stop()
	return d.src.Close()
}

func (d *dvdRead) Name() string {
	return d.src.VolumeLabel()
}

func (d *dvdRead) TitleCount() int {
	return len(d.vmg.Titles)
}

func (d *dvdRead) Start(t *Title, angle int) error {
	if t == nil || len(t.Cells) == 0 {
		return fmt.Errorf("%w: no title", ErrNotFound)
	}
	if angle < 1 || angle > t.AngleCount {
		return fmt.Errorf("%w: angle %d of %d", ErrUnsupported, angle, t.AngleCount)
	}
	d.Stop()

	vobs, err := d.src.OpenTitleVOBs(t.VTS)
	if err != nil {
		return fmt.Errorf("%w: title set %d: %w", ErrIO, t.VTS, err)
	}
	d.vobs = vobs
	d.title = t
	d.cur.start(t, angle)
	d.log.Debug("start title", "title", t.Index, "angle", angle, "cell", d.cur.cell,
		"first", d.cur.cellFirst, "last", d.cur.cellLast, "blocks", t.BlockCount)
	return nil
}

func (d *dvdRead) Stop() {
	if d.vobs != nil {
		if err := d.vobs.Close(); err != nil {
			d.log.Warn("closing title VOBs", "error", err)
		}
		d.vobs = nil
	}
	d.cur.end()
}

func (d *dvdRead) Seek(fraction float64) error {
	if d.title == nil || d.vobs == nil {
		return fmt.Errorf("%w: no title started", ErrNotFound)
	}
	if math.IsNaN(fraction) || fraction < 0 {
		fraction = 0
	}
	t := d.title
	target := int64(math.Floor(fraction * float64(t.BlockCount)))
	target = max(min(target, t.BlockCount-1), 0)

	var offset int64
	for _, i := range t.path(d.cur.angle) {
		cell := &t.Cells[i]
		if target < offset+cell.Blocks() {
			d.cur.seekTo(i, cell.FirstSector+target-offset)
			d.log.Debug("seek", "fraction", fraction, "cell", i, "block", d.cur.block)
			return nil
		}
		offset += cell.Blocks()
	}
	// target lies past the selected angle's path, which can be shorter than
	// the angle 1 path used for BlockCount
	last := t.path(d.cur.angle)
	i := last[len(last)-1]
	d.cur.seekTo(i, t.Cells[i].LastSector)
	return nil
}

func (d *dvdRead) Read() (*Pack, error) {
	if d.title == nil || d.vobs == nil {
		return nil, ErrEndOfTitle
	}
	c := &d.cur
	for {
		switch c.state {
		case stateEnded:
			return nil, ErrEndOfTitle

		case stateCellBoundary:
			prev := c.cell
			next, ended := c.advance()
			if ended {
				d.log.Debug("end of title", "title", d.title.Index, "cell", prev)
				return nil, ErrEndOfTitle
			}
			if d.title.Cells[prev].Angles > 0 && d.title.Cells[prev].BlockLast > prev {
				d.log.Trace("skipping multi-angle cells", "from", prev, "to", d.title.Cells[prev].BlockLast)
			}
			d.log.Debug("beginning of cell", "cell", next, "first", c.cellFirst, "last", c.cellLast)

		case stateUnsynchronized:
			pack, err := d.resync()
			if err != nil {
				d.abort(err)
				return nil, err
			}
			if pack != nil {
				return pack, nil
			}

		case stateSynchronized:
			if c.remaining == 0 {
				c.vobuDone()
				continue
			}
			if c.block > c.cellLast {
				d.log.Debug("vobu ran into end of cell", "block", c.block, "last", c.cellLast)
				c.state = stateCellBoundary
				continue
			}
			data, err := d.readBlock(c.block)
			if err != nil {
				d.abort(err)
				return nil, err
			}
			c.remaining--
			return d.emit(data, false), nil
		}
	}
}

// resync scans for the next navigation pack of the current cell. It returns
// a nil pack when the scan reached the end of the cell.
func (d *dvdRead) resync() (*Pack, error) {
	c := &d.cur
	start := c.block
	if c.block < c.cellFirst {
		c.block = c.cellFirst
	}

	for scanned := 0; ; scanned++ {
		if scanned >= d.settings.ScanLimit {
			return nil, fmt.Errorf("%w: no navigation pack in %d blocks from %d", ErrFormat, scanned, start)
		}
		if c.block > c.cellLast {
			d.log.Debug("scan passed end of cell", "cell", c.cell, "last", c.cellLast)
			c.state = stateCellBoundary
			return nil, nil
		}

		data, err := d.readBlock(c.block)
		if err != nil {
			return nil, err
		}
		if !navpack.IsNavPack(data) {
			if c.expectNav {
				d.log.Debug("lost sync", "block", c.block)
				c.expectNav = false
			}
			c.block++
			continue
		}

		np, err := navpack.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %w", ErrFormat, c.block, err)
		}
		dsi := &np.DSI
		if int64(dsi.NavPackLBN) != c.block || dsi.VOBUEA == 0 || dsi.VOBUEA >= maxVOBUPacks ||
			np.PCI.NavPackLBN != dsi.NavPackLBN {
			return nil, fmt.Errorf("%w: bad navigation pack at block %d (lbn %d, vobu_ea %d)",
				ErrFormat, c.block, dsi.NavPackLBN, dsi.VOBUEA)
		}

		if !c.expects(dsi) {
			d.log.Trace("skipping vobu of another cell", "block", c.block, "vob", dsi.VOBID, "cell_id", dsi.CellID)
			c.expectNav = false
			c.block += int64(dsi.VOBUEA) + 1
			continue
		}
		if c.block+int64(dsi.VOBUEA) > c.cellLast {
			return nil, fmt.Errorf("%w: vobu at block %d ends at %d past cell end %d",
				ErrFormat, c.block, c.block+int64(dsi.VOBUEA), c.cellLast)
		}
		if next := nextVOBUAddress(dsi); !dsi.EndOfCell() && next <= c.block+int64(dsi.VOBUEA) {
			return nil, fmt.Errorf("%w: vobu at block %d points back to %d", ErrFormat, c.block, next)
		}

		if !c.expectNav || scanned > 0 {
			d.log.Debug("in sync at block", "block", c.block, "cell", c.cell)
		}
		c.synced(np)
		return d.emit(data, true), nil
	}
}

// emit returns the block at c.block and advances past it.
func (d *dvdRead) emit(data []byte, nav bool) *Pack {
	c := &d.cur
	p := &Pack{LBA: c.block, Data: data, NavPack: nav, Cell: c.cell}
	if c.newCell {
		c.newCell = false
		p.NewChapter = d.title.chapterStart(c.cell)
	}
	c.block++
	return p
}

// readBlock reads one block, retrying failed reads.
func (d *dvdRead) readBlock(lba int64) ([]byte, error) {
	buf := make([]byte, fs.SectorSize)
	var err error
	for attempt := 0; attempt <= d.settings.ReadRetries; attempt++ {
		if err = d.vobs.ReadBlock(lba, buf); err == nil {
			return buf, nil
		}
		if errors.Is(err, fs.ErrOutOfRange) {
			break
		}
		d.log.Warn("read error", "block", lba, "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("%w: block %d: %w", ErrIO, lba, err)
}

// abort ends the title after an unrecoverable error.
func (d *dvdRead) abort(err error) {
	d.log.Error("abandoning title", "title", d.title.Index, "cell", d.cur.cell, "block", d.cur.block, "error", err)
	d.Stop()
}

func (d *dvdRead) Chapter() (int, error) {
	if d.title == nil || d.cur.state == stateEnded {
		return 0, fmt.Errorf("%w: no active title", ErrNotFound)
	}
	ch := d.title.chapterOf(d.cur.cell)
	if ch == 0 {
		return 0, fmt.Errorf("%w: cell %d is in no chapter", ErrNotFound, d.cur.cell)
	}
	return ch, nil
}

func (d *dvdRead) AngleCount() int {
	if d.title == nil {
		return 1
	}
	return d.title.AngleCount
}

func (d *dvdRead) SetAngle(angle int) error {
	if angle < 1 || angle > d.AngleCount() {
		return fmt.Errorf("%w: angle %d of %d", ErrUnsupported, angle, d.AngleCount())
	}
	if angle != d.cur.angle {
		d.log.Debug("angle selected", "angle", angle)
	}
	d.cur.angle = angle
	return nil
}

func (d *dvdRead) MainFeature(titles []*Title) *Title {
	return mainFeature(titles)
}

var _ Disc = (*dvdRead)(nil)

