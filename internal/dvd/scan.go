package dvd

import (
	"fmt"
	"time"

	"github.com/s0up4200/go-dvdread/internal/ifo"
)

// vts returns the parsed title set n, reading it on first use.
func (d *dvdRead) vts(n int) (*ifo.VTS, error) {
	if v, ok := d.vtsCache[n]; ok {
		return v, nil
	}
	v, err := ifo.ReadVTS(d.src, n)
	if err != nil {
		return nil, err
	}
	d.vtsCache[n] = v
	return v, nil
}

func (d *dvdRead) TitleScan(index int, minDuration time.Duration) (*Title, error) {
	if index < 1 || index > len(d.vmg.Titles) {
		return nil, fmt.Errorf("%w: title %d of %d", ErrNotFound, index, len(d.vmg.Titles))
	}
	entry := d.vmg.Titles[index-1]

	vts, err := d.vts(entry.VTS)
	if err != nil {
		d.log.Warn("cannot read title set", "title", index, "vts", entry.VTS, "error", err)
		return nil, fmt.Errorf("%w: title %d: %w", ErrNotFound, index, err)
	}

	t, err := buildTitle(index, entry, vts)
	if err != nil {
		d.log.Warn("skipping title", "title", index, "error", err)
		return nil, fmt.Errorf("%w: title %d: %w", ErrNotFound, index, err)
	}
	if dropped := len(vts.PTT[entry.VTSTitle-1]) - len(t.Chapters); dropped > 0 {
		d.log.Debug("chapters in other program chains dropped", "title", index, "dropped", dropped)
	}
	if t.Duration < minDuration {
		d.log.Debug("title too short", "title", index, "duration", t.Duration, "min", minDuration)
		return nil, fmt.Errorf("%w: title %d shorter than %s", ErrNotFound, index, minDuration)
	}

	d.log.Debug("scanned title", "title", index, "vts", t.VTS, "ttn", t.TTN, "pgcn", t.PGCN,
		"cells", fmt.Sprintf("%d-%d", t.CellStart, t.CellEnd), "blocks", t.BlockCount,
		"chapters", len(t.Chapters), "angles", t.AngleCount, "duration", t.Duration)
	return t, nil
}

// buildTitle assembles a Title from the title table entry and its title set.
// Only chapters in the program chain of the first chapter are kept.
func buildTitle(index int, entry ifo.TitleEntry, vts *ifo.VTS) (*Title, error) {
	if entry.VTSTitle < 1 || entry.VTSTitle > len(vts.PTT) {
		return nil, fmt.Errorf("vts title %d of %d", entry.VTSTitle, len(vts.PTT))
	}
	parts := vts.PTT[entry.VTSTitle-1]
	if len(parts) == 0 {
		return nil, fmt.Errorf("no chapters")
	}
	pgcn := parts[0].PGCN
	if pgcn < 1 || pgcn > len(vts.PGCs) {
		return nil, fmt.Errorf("program chain %d of %d", pgcn, len(vts.PGCs))
	}
	pgc := vts.PGCs[pgcn-1]
	if len(pgc.Cells) == 0 {
		return nil, fmt.Errorf("program chain %d has no cells", pgcn)
	}
	for i, c := range pgc.Cells {
		if c.LastSector < c.FirstSector {
			return nil, fmt.Errorf("cell %d ends before it starts", i)
		}
	}

	t := &Title{
		Index:       index,
		VTS:         entry.VTS,
		TTN:         entry.VTSTitle,
		PGCN:        pgcn,
		AngleCount:  max(entry.Angles, 1),
		PGC:         pgc,
		Cells:       buildCells(pgc),
		Video:       vts.Video,
		Audio:       vts.Audio,
		Subpictures: vts.Subpictures,
	}

	for _, part := range parts {
		if part.PGCN != pgcn {
			continue
		}
		first, last, ok := pgc.ProgramCells(part.PGN)
		if !ok {
			return nil, fmt.Errorf("chapter %d: program %d not in program chain", len(t.Chapters)+1, part.PGN)
		}
		t.Chapters = append(t.Chapters, Chapter{Index: len(t.Chapters) + 1, CellStart: first, CellEnd: last})
	}
	t.CellStart = t.Chapters[0].CellStart
	t.CellEnd = t.Chapters[len(t.Chapters)-1].CellEnd
	if t.CellEnd < t.CellStart {
		return nil, fmt.Errorf("chapters out of order: cells %d-%d", t.CellStart, t.CellEnd)
	}

	for _, i := range t.path(1) {
		cell := &t.Cells[i]
		t.BlockCount += cell.Blocks()
		t.Duration += cell.Duration
		if ch := t.chapterOf(i); ch > 0 {
			t.Chapters[ch-1].Blocks += cell.Blocks()
			t.Chapters[ch-1].Duration += cell.Duration
		}
	}
	if t.Duration == 0 {
		t.Duration = pgc.PlaybackTime
	}
	return t, nil
}
