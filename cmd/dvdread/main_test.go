package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/s0up4200/go-dvdread/internal/ifo/ifotest"
	"github.com/s0up4200/go-dvdread/internal/settings"
)

// writeDisc creates SAMPLE_DISC with a 2 minute title of 48 blocks and a 5
// second title.
func writeDisc(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "SAMPLE_DISC")
	dir := filepath.Join(root, "VIDEO_TS")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}

	var cells []ifotest.Cell
	for i := range 12 {
		cells = append(cells, ifotest.Cell{
			First:    uint32(i * 4),
			Last:     uint32(i*4 + 3),
			VOBID:    1,
			CellID:   i + 1,
			Duration: 10 * time.Second,
		})
	}
	short := []ifotest.Cell{{First: 48, Last: 51, VOBID: 2, CellID: 1, Duration: 5 * time.Second}}

	files := map[string][]byte{
		"VIDEO_TS.IFO": ifotest.VMG(1, []ifotest.Title{
			{VTS: 1, VTSTitle: 1, Angles: 1, Parts: 2},
			{VTS: 1, VTSTitle: 2, Angles: 1, Parts: 1},
		}),
		"VTS_01_0.IFO": ifotest.VTS(ifotest.VTSOptions{},
			[][]ifotest.Part{
				{{PGCN: 1, PGN: 1}, {PGCN: 1, PGN: 2}},
				{{PGCN: 2, PGN: 1}},
			},
			[]ifotest.PGC{
				{ProgramMap: []int{1, 7}, Cells: cells},
				{ProgramMap: []int{1}, Cells: short},
			}),
		"VTS_01_1.VOB": ifotest.VOB(append(append([]ifotest.Cell{}, cells...), short...), 4),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestApplyOverrides(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, s settings.Settings)
	}{
		{
			name: "unchanged flags keep config values",
			args: nil,
			check: func(t *testing.T, s settings.Settings) {
				if s.ReadRetries != 5 || s.ScanLimit != 64 || s.LogLevel != "error" {
					t.Fatalf("settings = %+v", s)
				}
			},
		},
		{
			name: "explicit flags win",
			args: []string{"--retries", "0", "--scan-limit", "8", "--log-level", "info"},
			check: func(t *testing.T, s settings.Settings) {
				if s.ReadRetries != 0 || s.ScanLimit != 8 || s.LogLevel != "info" {
					t.Fatalf("settings = %+v", s)
				}
			},
		},
		{
			name: "verbose forces debug",
			args: []string{"-v", "--log-level", "error"},
			check: func(t *testing.T, s settings.Settings) {
				if s.LogLevel != "debug" {
					t.Fatalf("LogLevel = %q, want debug", s.LogLevel)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts rootOptions
			flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
			flags.BoolVarP(&opts.verbose, "verbose", "v", false, "")
			flags.StringVar(&opts.logLevel, "log-level", "", "")
			flags.IntVar(&opts.retries, "retries", 1, "")
			flags.IntVar(&opts.scanLimit, "scan-limit", 1024, "")
			if err := flags.Parse(tt.args); err != nil {
				t.Fatal(err)
			}

			s := settings.Default(".")
			s.ReadRetries = 5
			s.ScanLimit = 64
			s.LogLevel = "error"
			applyOverrides(flags, &opts, &s)
			tt.check(t, s)
		})
	}
}

func TestTitlesCommand(t *testing.T) {
	out, _, err := execute(t, "titles", writeDisc(t))
	if err != nil {
		t.Fatalf("titles error = %v", err)
	}
	for _, want := range []string{"Disc Label:     SAMPLE_DISC", "Titles:         2", "1*", "0:02:00", "1 titles skipped"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTitlesCommand_MinDuration(t *testing.T) {
	out, _, err := execute(t, "titles", "--min-duration", "0s", writeDisc(t))
	if err != nil {
		t.Fatalf("titles error = %v", err)
	}
	if strings.Contains(out, "skipped") || !strings.Contains(out, "0:00:05") {
		t.Fatalf("short title missing:\n%s", out)
	}
}

func TestTitlesCommand_ConfigFromEnv(t *testing.T) {
	config := filepath.Join(t.TempDir(), "dvdread.yaml")
	if err := os.WriteFile(config, []byte("min_title_duration: 0s\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(configEnv, config)

	out, _, err := execute(t, "titles", writeDisc(t))
	if err != nil {
		t.Fatalf("titles error = %v", err)
	}
	if !strings.Contains(out, "0:00:05") {
		t.Fatalf("config not applied:\n%s", out)
	}
}

func TestTitlesCommand_BadConfig(t *testing.T) {
	config := filepath.Join(t.TempDir(), "dvdread.yaml")
	if err := os.WriteFile(config, []byte("scan_limit: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := execute(t, "titles", "--config", config, writeDisc(t)); err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestTitlesCommand_YAML(t *testing.T) {
	out, _, err := execute(t, "titles", "--yaml", writeDisc(t))
	if err != nil {
		t.Fatalf("titles error = %v", err)
	}
	for _, want := range []string{"label: SAMPLE_DISC", "main_feature: 1", "chapters: 2"} {
		if !strings.Contains(out, want) {
			t.Fatalf("yaml missing %q:\n%s", want, out)
		}
	}
}

func TestTitlesCommand_Report(t *testing.T) {
	name := filepath.Join(t.TempDir(), "catalog.txt")
	_, stderr, err := execute(t, "titles", "-o", name, writeDisc(t))
	if err != nil {
		t.Fatalf("titles error = %v", err)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !strings.Contains(string(data), "TITLE: 1 (main feature)") {
		t.Fatalf("unexpected report:\n%s", data)
	}
	if !strings.Contains(stderr, name) {
		t.Fatalf("stderr = %q, want report path", stderr)
	}
}

func TestRipCommand(t *testing.T) {
	disc := writeDisc(t)
	tests := []struct {
		name  string
		args  []string
		packs int
	}{
		{name: "main feature", args: nil, packs: 48},
		{name: "explicit title", args: []string{"--title", "2"}, packs: 4},
		{name: "seek", args: []string{"--seek", "0.5"}, packs: 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "title.vob")
			args := append([]string{"rip", disc, "-o", out}, tt.args...)
			_, stderr, err := execute(t, args...)
			if err != nil {
				t.Fatalf("rip error = %v", err)
			}
			info, err := os.Stat(out)
			if err != nil {
				t.Fatal(err)
			}
			if info.Size() != int64(tt.packs*2048) {
				t.Fatalf("wrote %d bytes, want %d packs", info.Size(), tt.packs)
			}
			if !strings.Contains(stderr, "wrote") {
				t.Fatalf("stderr = %q", stderr)
			}
		})
	}
}

func TestRipCommand_Errors(t *testing.T) {
	disc := writeDisc(t)
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing output", args: []string{"rip", disc}},
		{name: "bad title", args: []string{"rip", disc, "-o", "-", "--title", "9"}},
		{name: "bad angle", args: []string{"rip", disc, "-o", "-", "--angle", "2"}},
		{name: "missing disc", args: []string{"rip", filepath.Join(t.TempDir(), "none"), "-o", "-"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := execute(t, tt.args...); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if out != "dvdread version: dev\n" {
		t.Fatalf("version output = %q", out)
	}
}

func TestUpdateCommand_DevBuild(t *testing.T) {
	if _, _, err := execute(t, "update"); err == nil {
		t.Fatal("expected error for dev build")
	}
}
