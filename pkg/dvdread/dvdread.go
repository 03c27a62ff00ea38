// Package dvdread scans DVD-Video discs and reads their titles as ordered
// 2048 byte packs.
package dvdread

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/s0up4200/go-dvdread/internal/dvd"
	"github.com/s0up4200/go-dvdread/internal/fs"
	"github.com/s0up4200/go-dvdread/internal/report"
	internalsettings "github.com/s0up4200/go-dvdread/internal/settings"
)

// SectorSize is the size of every pack returned by Disc.Read.
const SectorSize = fs.SectorSize

type (
	Disc         = dvd.Disc
	Title        = dvd.Title
	Chapter      = dvd.Chapter
	Pack         = dvd.Pack
	Engine       = dvd.Engine
	EngineOpener = dvd.EngineOpener
	Event        = dvd.Event
	EventKind    = dvd.EventKind
	Option       = dvd.Option
)

const (
	EventBlock      = dvd.EventBlock
	EventNavPacket  = dvd.EventNavPacket
	EventCellChange = dvd.EventCellChange
	EventHighlight  = dvd.EventHighlight
	EventStillFrame = dvd.EventStillFrame
	EventWait       = dvd.EventWait
	EventStop       = dvd.EventStop
)

var (
	ErrOpen        = dvd.ErrOpen
	ErrIO          = dvd.ErrIO
	ErrFormat      = dvd.ErrFormat
	ErrNotFound    = dvd.ErrNotFound
	ErrUnsupported = dvd.ErrUnsupported
	ErrEndOfTitle  = dvd.ErrEndOfTitle
)

// Open opens a VIDEO_TS folder, a disc root folder or a disc image.
func Open(path string, opts ...Option) (Disc, error) {
	return dvd.Open(path, opts...)
}

// VolumeName returns the volume label of the disc at path.
func VolumeName(path string) (string, error) {
	return dvd.VolumeName(path)
}

func WithLogger(logger hclog.Logger) Option { return dvd.WithLogger(logger) }

func WithEngine(open EngineOpener) Option { return dvd.WithEngine(open) }

func WithSettings(s Settings) Option { return dvd.WithSettings(toInternalSettings(s)) }

// Stage represents a coarse progress stage for Scan.
type Stage string

const (
	StageStarting        Stage = "starting"
	StageOpened          Stage = "opened"
	StageScanning        Stage = "scanning"
	StageScanComplete    Stage = "scan_complete"
	StageRenderingReport Stage = "rendering_report"
	StageDone            Stage = "done"
)

// ProgressEvent is emitted when Scan moves between phases and before each
// title is scanned.
type ProgressEvent struct {
	Stage      Stage
	Path       string
	Label      string
	Titles     int
	Title      int
	Elapsed    time.Duration
	OccurredAt time.Time
}

// Settings are library-facing navigator and report controls. Start from
// DefaultSettings; a zero Settings value means the defaults.
type Settings struct {
	ReadRetries      int
	ScanLimit        int
	MinTitleDuration time.Duration
	ReportFileName   string
}

// DefaultSettings returns library defaults equivalent to CLI defaults.
func DefaultSettings(reportBaseDir string) Settings {
	return fromInternalSettings(internalsettings.Default(reportBaseDir))
}

// Options configure one Scan call for a single disc folder or image.
type Options struct {
	Path       string
	ReportPath string
	Settings   Settings
	Logger     hclog.Logger
	Engine     EngineOpener
	OnProgress func(ProgressEvent)
}

// DiscInfo contains high-level disc metadata.
type DiscInfo struct {
	Path   string `yaml:"path"`
	Label  string `yaml:"label"`
	Titles int    `yaml:"titles"`
}

// TitleInfo summarizes one scanned title.
type TitleInfo struct {
	Index          int           `yaml:"index"`
	VTS            int           `yaml:"vts"`
	Duration       time.Duration `yaml:"duration"`
	Blocks         int64         `yaml:"blocks"`
	SizeBytes      int64         `yaml:"size_bytes"`
	Chapters       int           `yaml:"chapters"`
	Angles         int           `yaml:"angles"`
	Video          string        `yaml:"video,omitempty"`
	AudioLanguages []string      `yaml:"audio_languages,omitempty"`
	SubLanguages   []string      `yaml:"subtitle_languages,omitempty"`
	MainFeature    bool          `yaml:"main_feature"`
}

// Result contains structured scan output plus rendered report content.
type Result struct {
	Disc        DiscInfo       `yaml:"disc"`
	Titles      []TitleInfo    `yaml:"titles"`
	MainFeature int            `yaml:"main_feature,omitempty"`
	Skipped     map[int]string `yaml:"skipped,omitempty"`
	Report      string         `yaml:"-"`
	ReportPath  string         `yaml:"-"`
	titles      []*Title
}

// ScannedTitles returns the scanned titles in disc order.
func (r Result) ScannedTitles() []*Title {
	return r.titles
}

// Scan opens one path, scans every title and returns the catalog plus the
// rendered report. It does not write files; callers own output persistence.
func Scan(ctx context.Context, options Options) (Result, error) {
	if options.Path == "" {
		return Result{}, errors.New("path is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	emit(options.OnProgress, ProgressEvent{
		Stage:      StageStarting,
		Path:       options.Path,
		OccurredAt: time.Now(),
	})

	cfg := toInternalSettings(options.Settings)
	opts := []Option{dvd.WithSettings(cfg), dvd.WithLogger(options.Logger)}
	if options.Engine != nil {
		opts = append(opts, dvd.WithEngine(options.Engine))
	}
	disc, err := dvd.Open(options.Path, opts...)
	if err != nil {
		return Result{}, err
	}
	defer disc.Close()

	label := disc.Name()
	count := disc.TitleCount()
	emit(options.OnProgress, ProgressEvent{
		Stage:      StageOpened,
		Path:       options.Path,
		Label:      label,
		Titles:     count,
		OccurredAt: time.Now(),
	})

	var titles []*Title
	skipped := make(map[int]error)
	for index := 1; index <= count; index++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		emit(options.OnProgress, ProgressEvent{
			Stage:      StageScanning,
			Path:       options.Path,
			Label:      label,
			Titles:     count,
			Title:      index,
			OccurredAt: time.Now(),
		})
		t, err := disc.TitleScan(index, cfg.MinTitleDuration)
		if err != nil {
			skipped[index] = err
			continue
		}
		titles = append(titles, t)
	}
	main := disc.MainFeature(titles)

	emit(options.OnProgress, ProgressEvent{
		Stage:      StageScanComplete,
		Path:       options.Path,
		Label:      label,
		Titles:     count,
		Elapsed:    time.Since(start),
		OccurredAt: time.Now(),
	})

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	emit(options.OnProgress, ProgressEvent{
		Stage:      StageRenderingReport,
		Path:       options.Path,
		OccurredAt: time.Now(),
	})
	reportPath := options.ReportPath
	if reportPath == "" {
		reportPath = report.ReportName(cfg, label)
	}
	reportText := report.Build(label, titles, report.ScanResult{
		TitleCount:  count,
		MainFeature: main,
		Skipped:     skipped,
	})

	result := Result{
		Disc:       DiscInfo{Path: options.Path, Label: label, Titles: count},
		Titles:     buildTitleInfo(titles, main),
		Report:     reportText,
		ReportPath: reportPath,
		titles:     titles,
	}
	if main != nil {
		result.MainFeature = main.Index
	}
	if len(skipped) > 0 {
		result.Skipped = make(map[int]string, len(skipped))
		for index, err := range skipped {
			result.Skipped[index] = err.Error()
		}
	}

	emit(options.OnProgress, ProgressEvent{
		Stage:      StageDone,
		Path:       options.Path,
		Label:      label,
		Titles:     count,
		Elapsed:    time.Since(start),
		OccurredAt: time.Now(),
	})

	return result, nil
}

func emit(cb func(ProgressEvent), event ProgressEvent) {
	if cb != nil {
		cb(event)
	}
}

func buildTitleInfo(titles []*Title, main *Title) []TitleInfo {
	out := make([]TitleInfo, 0, len(titles))
	for _, t := range titles {
		if t == nil {
			continue
		}
		info := TitleInfo{
			Index:       t.Index,
			VTS:         t.VTS,
			Duration:    t.Duration,
			Blocks:      t.BlockCount,
			SizeBytes:   t.BlockCount * SectorSize,
			Chapters:    len(t.Chapters),
			Angles:      t.AngleCount,
			MainFeature: t == main,
		}
		if t.Video.Format != "" {
			info.Video = t.Video.Format + " " + t.Video.AspectRatio
		}
		for _, a := range t.Audio {
			info.AudioLanguages = append(info.AudioLanguages, a.Language)
		}
		for _, sp := range t.Subpictures {
			info.SubLanguages = append(info.SubLanguages, sp.Language)
		}
		out = append(out, info)
	}
	return out
}

func fromInternalSettings(s internalsettings.Settings) Settings {
	return Settings{
		ReadRetries:      s.ReadRetries,
		ScanLimit:        s.ScanLimit,
		MinTitleDuration: s.MinTitleDuration,
		ReportFileName:   s.ReportFileName,
	}
}

func toInternalSettings(s Settings) internalsettings.Settings {
	base := internalsettings.Default(".")
	if s == (Settings{}) {
		return base
	}
	base.ReadRetries = s.ReadRetries
	base.ScanLimit = s.ScanLimit
	base.MinTitleDuration = s.MinTitleDuration
	if s.ReportFileName != "" {
		base.ReportFileName = s.ReportFileName
	}
	return base
}
