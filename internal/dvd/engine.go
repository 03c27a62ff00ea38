package dvd

import "time"

// Engine is a full DVD navigation engine driven through blocking calls.
// Title and part numbers are 1-based.
type Engine interface {
	Close() error
	VolumeLabel() string
	TitleCount() (int, error)
	PartCount(title int) (int, error)
	AngleCount(title int) (int, error)
	TitleBlocks(title int) (int64, error)
	// PartBlocks returns the pack count of each chapter.
	PartBlocks(title int) ([]int64, error)
	TitleDuration(title int) (time.Duration, error)
	PlayTitle(title int) error
	SelectAngle(angle int) error
	// SeekBlock moves to a block offset within the playing title.
	SeekBlock(offset int64) error
	Stop() error
	// NextBlock fills buf for block events and reports what happened.
	NextBlock(buf []byte) (Event, error)
	CurrentPart() (title, part int, err error)
}

// EngineOpener opens an engine for a disc path.
type EngineOpener func(path string) (Engine, error)

type EventKind int

const (
	EventBlock EventKind = iota
	EventNavPacket
	EventCellChange
	EventHighlight
	EventStillFrame
	EventWait
	EventStop
)

func (k EventKind) String() string {
	switch k {
	case EventBlock:
		return "block"
	case EventNavPacket:
		return "nav packet"
	case EventCellChange:
		return "cell change"
	case EventHighlight:
		return "highlight"
	case EventStillFrame:
		return "still frame"
	case EventWait:
		return "wait"
	case EventStop:
		return "stop"
	}
	return "unknown"
}

// Event is one step of engine playback. Block is set for block and nav
// packet events; Title, Part and Cell for cell changes.
type Event struct {
	Kind  EventKind
	Block int64
	Title int
	Part  int
	Cell  int
}
