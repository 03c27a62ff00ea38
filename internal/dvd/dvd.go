// Package dvd reads DVD-Video titles as an ordered stream of 2048 byte packs.
//
// Two backends share the Disc interface: a raw block navigator that walks
// the cell tables itself, and a facade over an external navigation Engine.
// Open picks one per disc.
package dvd

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/s0up4200/go-dvdread/internal/fs"
	"github.com/s0up4200/go-dvdread/internal/fs/udf"
	"github.com/s0up4200/go-dvdread/internal/settings"
)

// Disc is an open disc with at most one active title cursor. Implementations
// are not safe for concurrent use.
type Disc interface {
	// Close releases the disc. It is safe to call more than once.
	Close() error
	// Name returns the volume label.
	Name() string
	TitleCount() int
	// TitleScan describes title index (1-based). Titles shorter than
	// minDuration report ErrNotFound.
	TitleScan(index int, minDuration time.Duration) (*Title, error)
	// Start positions the cursor at the beginning of t for the given angle.
	Start(t *Title, angle int) error
	Stop()
	// Seek moves to a fraction in [0,1) of the title's blocks.
	Seek(fraction float64) error
	// Read returns the next pack in playback order, or ErrEndOfTitle.
	Read() (*Pack, error)
	// Chapter returns the 1-based chapter of the current position.
	Chapter() (int, error)
	AngleCount() int
	SetAngle(angle int) error
	MainFeature(titles []*Title) *Title
}

// Pack is one 2048 byte block of a title.
type Pack struct {
	// LBA is the block address within the title VOB set.
	LBA     int64
	Data    []byte
	NavPack bool
	// Cell is the 0-based program chain cell the pack belongs to.
	Cell int
	// NewChapter is set to the chapter number on the first pack of a chapter.
	NewChapter int
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger   hclog.Logger
	settings settings.Settings
	engine   EngineOpener
}

func WithLogger(logger hclog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithSettings(s settings.Settings) Option {
	return func(o *options) {
		o.settings = s
	}
}

// WithEngine makes Open try a navigation engine for the disc.
func WithEngine(open EngineOpener) Option {
	return func(o *options) {
		o.engine = open
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:   hclog.NewNullLogger(),
		settings: settings.Default("."),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.settings.ScanLimit <= 0 {
		o.settings.ScanLimit = settings.Default(".").ScanLimit
	}
	if o.settings.ReadRetries < 0 {
		o.settings.ReadRetries = 0
	}
	return o
}

// Open opens a VIDEO_TS folder, a disc root folder or an image file.
func Open(path string, opts ...Option) (Disc, error) {
	o := newOptions(opts)

	if o.engine != nil {
		disc, err := openDVDNav(path, o)
		if err == nil {
			return disc, nil
		}
		o.logger.Warn("navigation engine failed, using raw block reader", "path", path, "error", err)
	}

	disc, err := openDVDRead(path, o)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpen, path, err)
	}
	return disc, nil
}

// VolumeName returns the label of the disc at path without scanning titles.
func VolumeName(path string) (string, error) {
	src, err := fs.Open(path)
	if err == nil {
		defer src.Close()
		return src.VolumeLabel(), nil
	}

	// plain ISO9660 images without a UDF file system
	f, ferr := os.Open(path)
	if ferr != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrOpen, path, err)
	}
	defer f.Close()
	label, lerr := udf.ISO9660Label(f)
	if lerr != nil || label == "" {
		return "", fmt.Errorf("%w: %s: %w", ErrOpen, path, err)
	}
	return label, nil
}

// mainFeature picks the title with the most blocks, preferring the earliest
// on ties.
func mainFeature(titles []*Title) *Title {
	var best *Title
	for _, t := range titles {
		if t == nil {
			continue
		}
		if best == nil || t.BlockCount > best.BlockCount {
			best = t
		}
	}
	return best
}
