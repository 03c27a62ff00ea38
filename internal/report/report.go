package report

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/s0up4200/go-dvdread/internal/dvd"
	"github.com/s0up4200/go-dvdread/internal/fs"
	"github.com/s0up4200/go-dvdread/internal/ifo"
	"github.com/s0up4200/go-dvdread/internal/settings"
	"github.com/s0up4200/go-dvdread/internal/util"
)

const productVersion = "0.1.0"

// ScanResult holds what the title scan found besides the titles themselves.
type ScanResult struct {
	TitleCount  int
	MainFeature *dvd.Title
	// Skipped maps a title index to the reason it was left out.
	Skipped map[int]error
}

var placeholder = regexp.MustCompile(`\{\d+\}`)

// ReportName resolves the report file name for a volume label.
func ReportName(s settings.Settings, label string) string {
	name := s.ReportFileName
	if strings.Contains(name, "{0}") {
		name = strings.ReplaceAll(name, "{0}", label)
	} else if placeholder.MatchString(name) {
		name = placeholder.ReplaceAllString(name, label)
	}
	if name == "-" {
		return name
	}
	if ext := filepath.Ext(name); ext != ".txt" && ext != ".dvdinfo" {
		name += ".txt"
	}
	return name
}

// WriteReport writes the title catalog to path, or to the name derived from
// the settings when path is empty. "-" writes to stdout. An existing report
// is renamed with a timestamp suffix first.
func WriteReport(path, label string, titles []*dvd.Title, scan ScanResult, s settings.Settings) (string, error) {
	reportName := path
	if reportName == "" {
		reportName = ReportName(s, label)
	}

	output := Build(label, titles, scan)
	if reportName == "-" {
		_, err := os.Stdout.WriteString(output)
		return reportName, err
	}

	if _, err := os.Stat(reportName); err == nil {
		backup := fmt.Sprintf("%s.%d", reportName, time.Now().Unix())
		_ = os.Rename(reportName, backup)
	}
	return reportName, os.WriteFile(reportName, []byte(output), 0o644)
}

// Build renders the catalog text.
func Build(label string, titles []*dvd.Title, scan ScanResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%-16s%s\n", "Disc Label:", label)
	fmt.Fprintf(&b, "%-16s%d\n", "Titles:", scan.TitleCount)
	if scan.MainFeature != nil {
		fmt.Fprintf(&b, "%-16s%d\n", "Main Feature:", scan.MainFeature.Index)
	}
	fmt.Fprintf(&b, "%-16s%s\n\n\n", "DVDInfo:", productVersion)

	if len(scan.Skipped) > 0 {
		b.WriteString("WARNING: Some titles were skipped during scan:\n\n")
		indexes := make([]int, 0, len(scan.Skipped))
		for index := range scan.Skipped {
			indexes = append(indexes, index)
		}
		sort.Ints(indexes)
		for _, index := range indexes {
			fmt.Fprintf(&b, "Title %d\t%s\n", index, scan.Skipped[index])
		}
		b.WriteString("\n")
	}

	b.WriteString("<--- BEGIN FORUMS PASTE --->\n")
	b.WriteString("[code]\n")
	fmt.Fprintf(&b, "%-8s%-12s%-10s%-8s%-20s%s\n", "Title", "Length", "Chapters", "Angles", "Size", "Audio")
	fmt.Fprintf(&b, "%-8s%-12s%-10s%-8s%-20s%s\n", "-----", "------", "--------", "------", "----", "-----")
	for _, t := range titles {
		fmt.Fprintf(&b, "%-8s%-12s%-10d%-8d%-20s%s\n",
			titleName(t, scan.MainFeature),
			util.FormatDuration(t.Duration, false),
			len(t.Chapters),
			t.AngleCount,
			util.FormatNumber(t.BlockCount*fs.SectorSize),
			audioSummary(t.Audio),
		)
	}
	b.WriteString("[/code]\n")
	b.WriteString("<---- END FORUMS PASTE ---->\n")

	for _, t := range titles {
		writeTitle(&b, t, t == scan.MainFeature)
	}
	return b.String()
}

func titleName(t *dvd.Title, main *dvd.Title) string {
	if t == main {
		return fmt.Sprintf("%d*", t.Index)
	}
	return fmt.Sprintf("%d", t.Index)
}

func audioSummary(audio []ifo.AudioAttributes) string {
	if len(audio) == 0 {
		return ""
	}
	a := audio[0]
	s := fmt.Sprintf("%s %s", a.Format, channelDescription(a.Channels))
	if a.Language != "" {
		s = a.Language + " " + s
	}
	if len(audio) > 1 {
		s += fmt.Sprintf(" (+%d)", len(audio)-1)
	}
	return s
}

func channelDescription(channels int) string {
	switch channels {
	case 1:
		return "1.0"
	case 2:
		return "2.0"
	case 6:
		return "5.1"
	case 7:
		return "6.1"
	case 8:
		return "7.1"
	}
	return fmt.Sprintf("%dch", channels)
}

func writeTitle(b *strings.Builder, t *dvd.Title, main bool) {
	b.WriteString("\n\n********************\n")
	if main {
		fmt.Fprintf(b, "TITLE: %d (main feature)\n", t.Index)
	} else {
		fmt.Fprintf(b, "TITLE: %d\n", t.Index)
	}
	b.WriteString("********************\n\n\n")

	size := t.BlockCount * fs.SectorSize
	fmt.Fprintf(b, "%-24s%s (h:m:s.ms)\n", "Length:", util.FormatDuration(t.Duration, true))
	fmt.Fprintf(b, "%-24s%s bytes (%s)\n", "Size:", util.FormatNumber(size), util.FormatFileSize(float64(size), true))
	fmt.Fprintf(b, "%-24s%s\n", "Blocks:", util.FormatNumber(t.BlockCount))
	fmt.Fprintf(b, "%-24sVTS %d, title %d, program chain %d\n", "Location:", t.VTS, t.TTN, t.PGCN)
	fmt.Fprintf(b, "%-24s%d-%d\n", "Cells:", t.CellStart, t.CellEnd)
	fmt.Fprintf(b, "%-24s%d\n", "Angles:", t.AngleCount)

	if t.Video.Format != "" {
		b.WriteString("\n\nVIDEO:\n\n\n")
		fmt.Fprintf(b, "%-24s%-16s\n", "Format", "Aspect Ratio")
		fmt.Fprintf(b, "%-24s%-16s\n", "------", "------------")
		fmt.Fprintf(b, "%-24s%-16s\n", "MPEG-2 "+t.Video.Format, t.Video.AspectRatio)
	}

	if len(t.Audio) > 0 {
		b.WriteString("\n\nAUDIO:\n\n\n")
		fmt.Fprintf(b, "%-32s%-16s%-16s\n", "Codec", "Language", "Channels")
		fmt.Fprintf(b, "%-32s%-16s%-16s\n", "-----", "--------", "--------")
		for _, a := range t.Audio {
			fmt.Fprintf(b, "%-32s%-16s%-16s\n", a.Format, a.Language, channelDescription(a.Channels))
		}
	}

	if len(t.Subpictures) > 0 {
		b.WriteString("\n\nSUBTITLES:\n\n\n")
		fmt.Fprintf(b, "%-8s%-16s\n", "Stream", "Language")
		fmt.Fprintf(b, "%-8s%-16s\n", "------", "--------")
		for i, sp := range t.Subpictures {
			fmt.Fprintf(b, "%-8d%-16s\n", i+1, sp.Language)
		}
	}

	writeChapters(b, t)
}

func writeChapters(b *strings.Builder, t *dvd.Title) {
	if len(t.Chapters) == 0 {
		return
	}
	b.WriteString("\n\nCHAPTERS:\n\n\n")
	fmt.Fprintf(b, "%-16s%-16s%-16s%-16s%-16s\n", "Number", "Time In", "Length", "Cells", "Size")
	fmt.Fprintf(b, "%-16s%-16s%-16s%-16s%-16s\n", "------", "-------", "------", "-----", "----")
	var timeIn time.Duration
	for _, ch := range t.Chapters {
		fmt.Fprintf(b, "%-16d%-16s%-16s%-16s%-16s\n",
			ch.Index,
			util.FormatDuration(timeIn, true),
			util.FormatDuration(ch.Duration, true),
			fmt.Sprintf("%d-%d", ch.CellStart, ch.CellEnd),
			util.FormatNumber(ch.Blocks*fs.SectorSize),
		)
		timeIn += ch.Duration
	}
}
