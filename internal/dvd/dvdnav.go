package dvd

import (
	"fmt"
	"math"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/s0up4200/go-dvdread/internal/fs"
)

// dvdNav adapts an Engine's event stream to the pull based Disc interface.
type dvdNav struct {
	engine     Engine
	log        hclog.Logger
	titleCount int
	// retries is the number of extra NextBlock attempts after a failure.
	retries int

	title    *Title
	chapters []Chapter
	angle    int
	started  bool
	stopped  bool
	chapter  int
	cell     int
	// pendingChapter is reported on the next block after a part change.
	pendingChapter int
	closed         bool
}

func openDVDNav(path string, o options) (*dvdNav, error) {
	engine, err := o.engine(path)
	if err != nil {
		return nil, err
	}
	n, err := newDVDNav(engine, o)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	return n, nil
}

func newDVDNav(engine Engine, o options) (*dvdNav, error) {
	count, err := engine.TitleCount()
	if err != nil {
		return nil, fmt.Errorf("title count: %w", err)
	}
	n := &dvdNav{
		engine:     engine,
		log:        o.logger.Named("dvdnav"),
		titleCount: count,
		retries:    o.settings.ReadRetries,
	}
	n.log.Debug("opened disc", "label", engine.VolumeLabel(), "titles", count)
	return n, nil
}

func (n *dvdNav) Close() error {
	if n.closed {
		return nil
	}
	n.closed = true
	n.Stop()
	return n.engine.Close()
}

func (n *dvdNav) Name() string {
	return n.engine.VolumeLabel()
}

func (n *dvdNav) TitleCount() int {
	return n.titleCount
}

func (n *dvdNav) TitleScan(index int, minDuration time.Duration) (*Title, error) {
	if index < 1 || index > n.titleCount {
		return nil, fmt.Errorf("%w: title %d of %d", ErrNotFound, index, n.titleCount)
	}
	fail := func(what string, err error) (*Title, error) {
		n.log.Warn("skipping title", "title", index, "query", what, "error", err)
		return nil, fmt.Errorf("%w: title %d: %s: %w", ErrNotFound, index, what, err)
	}

	angles, err := n.engine.AngleCount(index)
	if err != nil {
		return fail("angles", err)
	}
	blocks, err := n.engine.TitleBlocks(index)
	if err != nil {
		return fail("blocks", err)
	}
	partCount, err := n.engine.PartCount(index)
	if err != nil {
		return fail("parts", err)
	}
	parts, err := n.engine.PartBlocks(index)
	if err != nil {
		return fail("part blocks", err)
	}
	if len(parts) != partCount {
		n.log.Debug("part block list does not match part count", "title", index, "parts", partCount, "sizes", len(parts))
	}
	duration, err := n.engine.TitleDuration(index)
	if err != nil {
		return fail("duration", err)
	}
	if duration < minDuration {
		return nil, fmt.Errorf("%w: title %d shorter than %s", ErrNotFound, index, minDuration)
	}

	t := &Title{
		Index:      index,
		BlockCount: blocks,
		Duration:   duration,
		AngleCount: max(angles, 1),
	}
	for i := range partCount {
		ch := Chapter{Index: i + 1}
		if i < len(parts) {
			ch.Blocks = parts[i]
		}
		if blocks > 0 {
			ch.Duration = time.Duration(float64(duration) * float64(ch.Blocks) / float64(blocks))
		}
		t.Chapters = append(t.Chapters, ch)
	}
	return t, nil
}

func (n *dvdNav) Start(t *Title, angle int) error {
	if t == nil {
		return fmt.Errorf("%w: no title", ErrNotFound)
	}
	if angle < 1 || angle > t.AngleCount {
		return fmt.Errorf("%w: angle %d of %d", ErrUnsupported, angle, t.AngleCount)
	}
	if err := n.engine.PlayTitle(t.Index); err != nil {
		return fmt.Errorf("%w: play title %d: %w", ErrIO, t.Index, err)
	}
	if angle > 1 {
		if err := n.engine.SelectAngle(angle); err != nil {
			return fmt.Errorf("%w: select angle %d: %w", ErrUnsupported, angle, err)
		}
	}
	n.title = t
	n.chapters = t.Chapters
	n.angle = angle
	n.started = true
	n.stopped = false
	n.chapter = 1
	n.cell = 0
	n.pendingChapter = 1
	return nil
}

func (n *dvdNav) Stop() {
	if !n.started {
		return
	}
	if err := n.engine.Stop(); err != nil {
		n.log.Warn("engine stop", "error", err)
	}
	n.started = false
	n.stopped = true
}

func (n *dvdNav) Seek(fraction float64) error {
	if !n.started {
		return fmt.Errorf("%w: no title started", ErrNotFound)
	}
	if math.IsNaN(fraction) || fraction < 0 {
		fraction = 0
	}
	blocks := n.title.BlockCount
	target := max(min(int64(math.Floor(fraction*float64(blocks))), blocks-1), 0)
	if err := n.engine.SeekBlock(target); err != nil {
		return fmt.Errorf("%w: seek to block %d: %w", ErrIO, target, err)
	}
	n.chapter = n.chapterAt(target)
	return nil
}

// chapterAt maps a title block offset to a chapter using the cached sizes.
func (n *dvdNav) chapterAt(block int64) int {
	var offset int64
	for _, ch := range n.chapters {
		offset += ch.Blocks
		if block < offset {
			return ch.Index
		}
	}
	return len(n.chapters)
}

func (n *dvdNav) Read() (*Pack, error) {
	if !n.started || n.stopped {
		return nil, ErrEndOfTitle
	}
	buf := make([]byte, fs.SectorSize)
	for {
		ev, err := n.nextBlock(buf)
		if err != nil {
			n.stopped = true
			n.log.Error("engine read failed", "title", n.title.Index, "error", err)
			return nil, fmt.Errorf("%w: %w", ErrIO, err)
		}

		switch ev.Kind {
		case EventBlock, EventNavPacket:
			p := &Pack{LBA: ev.Block, Data: buf, NavPack: ev.Kind == EventNavPacket, Cell: n.cell}
			if n.pendingChapter > 0 {
				p.NewChapter = n.pendingChapter
				n.pendingChapter = 0
			}
			return p, nil

		case EventCellChange:
			if ev.Title != n.title.Index {
				n.log.Debug("engine left the title", "title", n.title.Index, "now", ev.Title)
				n.stopped = true
				return nil, ErrEndOfTitle
			}
			if ev.Part != n.chapter {
				n.pendingChapter = ev.Part
				n.chapter = ev.Part
			}
			n.cell = ev.Cell

		case EventHighlight, EventStop:
			n.log.Debug("end of title", "title", n.title.Index, "event", ev.Kind)
			n.stopped = true
			return nil, ErrEndOfTitle

		case EventStillFrame, EventWait:
			n.log.Trace("skipping event", "event", ev.Kind)
		}
	}
}

// nextBlock asks the engine for the next event, retrying failed reads.
func (n *dvdNav) nextBlock(buf []byte) (Event, error) {
	var err error
	for attempt := 0; attempt <= n.retries; attempt++ {
		var ev Event
		if ev, err = n.engine.NextBlock(buf); err == nil {
			return ev, nil
		}
		n.log.Warn("engine read error", "title", n.title.Index, "attempt", attempt+1, "error", err)
	}
	return Event{}, err
}

func (n *dvdNav) Chapter() (int, error) {
	if !n.started || n.stopped {
		return 0, fmt.Errorf("%w: no active title", ErrNotFound)
	}
	if title, part, err := n.engine.CurrentPart(); err == nil && title == n.title.Index && part > 0 {
		return part, nil
	}
	if n.chapter < 1 {
		return 0, fmt.Errorf("%w: chapter unknown", ErrNotFound)
	}
	return n.chapter, nil
}

func (n *dvdNav) AngleCount() int {
	if n.title == nil {
		return 1
	}
	return n.title.AngleCount
}

func (n *dvdNav) SetAngle(angle int) error {
	if angle < 1 || angle > n.AngleCount() {
		return fmt.Errorf("%w: angle %d of %d", ErrUnsupported, angle, n.AngleCount())
	}
	if angle == n.angle || !n.started {
		n.angle = angle
		return nil
	}
	if err := n.engine.SelectAngle(angle); err != nil {
		return fmt.Errorf("%w: select angle %d: %w", ErrUnsupported, angle, err)
	}
	n.angle = angle
	return nil
}

func (n *dvdNav) MainFeature(titles []*Title) *Title {
	return mainFeature(titles)
}

var _ Disc = (*dvdNav)(nil)
