package report

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/s0up4200/go-dvdread/internal/dvd"
	"github.com/s0up4200/go-dvdread/internal/ifo"
	"github.com/s0up4200/go-dvdread/internal/settings"
)

func testTitles() []*dvd.Title {
	feature := &dvd.Title{
		Index:      1,
		VTS:        1,
		TTN:        1,
		PGCN:       1,
		BlockCount: 120,
		Duration:   2 * time.Minute,
		AngleCount: 1,
		CellEnd:    29,
		Chapters: []dvd.Chapter{
			{Index: 1, CellStart: 0, CellEnd: 9, Blocks: 40, Duration: 40 * time.Second},
			{Index: 2, CellStart: 10, CellEnd: 19, Blocks: 40, Duration: 40 * time.Second},
			{Index: 3, CellStart: 20, CellEnd: 29, Blocks: 40, Duration: 40 * time.Second},
		},
		Video: ifo.VideoAttributes{Format: "PAL", AspectRatio: "16:9"},
		Audio: []ifo.AudioAttributes{
			{Format: "AC3", Language: "en", Channels: 6},
			{Format: "AC3", Language: "de", Channels: 2},
		},
		Subpictures: []ifo.SubpictureAttributes{{Language: "en"}},
	}
	extra := &dvd.Title{
		Index:      2,
		VTS:        2,
		TTN:        1,
		PGCN:       1,
		BlockCount: 30,
		Duration:   30 * time.Second,
		AngleCount: 2,
	}
	return []*dvd.Title{feature, extra}
}

func TestBuild(t *testing.T) {
	titles := testTitles()
	out := Build("TEST_DISC", titles, ScanResult{
		TitleCount:  3,
		MainFeature: titles[0],
		Skipped:     map[int]error{3: errors.New("title 3: not found")},
	})

	for _, want := range []string{
		"Disc Label:     TEST_DISC\n",
		"Titles:         3\n",
		"Main Feature:   1\n",
		"Title 3\ttitle 3: not found\n",
		"TITLE: 1 (main feature)\n",
		"TITLE: 2\n",
		"245,760 bytes",
		"MPEG-2 PAL",
		"en AC3 5.1 (+1)",
		"0:00:40.000",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}

	// chapters start where the previous one ended
	i1 := strings.Index(out, "0:00:00.000     0:00:40.000")
	i2 := strings.Index(out, "0:00:40.000     0:00:40.000")
	i3 := strings.Index(out, "0:01:20.000     0:00:40.000")
	if i1 == -1 || i2 == -1 || i3 == -1 || !(i1 < i2 && i2 < i3) {
		t.Fatalf("unexpected chapter table:\n%s", out)
	}
	if strings.Contains(out, "TITLE: 2 (main feature)") {
		t.Fatal("non main title marked as main feature")
	}
}

func TestReportName(t *testing.T) {
	tests := []struct {
		name string
		file string
		want string
	}{
		{name: "placeholder", file: "DVDInfo_{0}.txt", want: "DVDInfo_MOVIE.txt"},
		{name: "other placeholder", file: "report-{1}", want: "report-MOVIE.txt"},
		{name: "unknown extension", file: "out.log", want: "out.log.txt"},
		{name: "dvdinfo extension", file: "{0}.dvdinfo", want: "MOVIE.dvdinfo"},
		{name: "stdout", file: "-", want: "-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := settings.Default(".")
			s.ReportFileName = tt.file
			if got := ReportName(s, "MOVIE"); got != tt.want {
				t.Fatalf("ReportName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteReport_BacksUpExisting(t *testing.T) {
	dir := t.TempDir()
	cfg := settings.Default(dir)
	titles := testTitles()

	name, err := WriteReport("", "MOVIE", titles, ScanResult{TitleCount: 2, MainFeature: titles[0]}, cfg)
	if err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	if want := filepath.Join(dir, "DVDInfo_MOVIE.txt"); name != want {
		t.Fatalf("report name = %q, want %q", name, want)
	}

	if _, err := WriteReport("", "MOVIE", titles[:1], ScanResult{TitleCount: 1}, cfg); err != nil {
		t.Fatalf("second WriteReport() error = %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("found %d files, want report plus backup", len(entries))
	}
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "TITLE: 2") {
		t.Fatal("report was not replaced")
	}
}

func TestWriteReport_ExplicitPath(t *testing.T) {
	out := filepath.Join(t.TempDir(), "catalog.txt")
	name, err := WriteReport(out, "MOVIE", testTitles(), ScanResult{TitleCount: 2}, settings.Default("."))
	if err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	if name != out {
		t.Fatalf("report name = %q, want %q", name, out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("report not written: %v", err)
	}
}
