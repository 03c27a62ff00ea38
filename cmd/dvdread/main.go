package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/s0up4200/go-dvdread/internal/report"
	"github.com/s0up4200/go-dvdread/internal/settings"
	"github.com/s0up4200/go-dvdread/internal/util"
	"github.com/s0up4200/go-dvdread/pkg/dvdread"
)

var version = "dev"

const (
	updateSlug = "s0up4200/go-dvdread"
	configEnv  = "DVDREAD_CONFIG"
)

type rootOptions struct {
	configPath string
	verbose    bool
	logLevel   string
	retries    int
	scanLimit  int
}

type titlesOptions struct {
	minDuration time.Duration
	yaml        bool
	report      bool
	reportFile  string
}

type ripOptions struct {
	title  int
	angle  int
	seek   float64
	output string
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	rootCmd := &cobra.Command{
		Use:           "dvdread",
		Short:         "Read DVD-Video titles as ordered pack streams.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML settings file (default $"+configEnv+")")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log navigator events")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	flags.IntVar(&opts.retries, "retries", 1, "Extra attempts for a failed block read")
	flags.IntVar(&opts.scanLimit, "scan-limit", 1024, "Blocks scanned for a navigation pack before giving up")

	rootCmd.AddCommand(newTitlesCmd(&opts))
	rootCmd.AddCommand(newRipCmd(&opts))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "update",
		Short: "Update dvdread",
		Long:  "Update dvdread to latest version (release builds only).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelfUpdate(cmd.Context(), cmd.OutOrStdout())
		},
		DisableFlagsInUseLine: true,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "dvdread version: %s\n", version)
			return nil
		},
		DisableFlagsInUseLine: true,
	})
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "dvdread: %s\n", err.Error())
		os.Exit(1)
	}
}

// loadSettings builds the effective settings: defaults, then the config
// file, then flags the user set explicitly.
func loadSettings(cmd *cobra.Command, opts *rootOptions) (settings.Settings, error) {
	cwd, _ := os.Getwd()
	s := settings.Default(cwd)

	path := opts.configPath
	if path == "" {
		path = os.Getenv(configEnv)
	}
	if path != "" {
		loaded, err := settings.Load(path, s)
		if err != nil {
			return s, err
		}
		s = loaded
	}

	applyOverrides(cmd.Flags(), opts, &s)
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func applyOverrides(flags *pflag.FlagSet, opts *rootOptions, s *settings.Settings) {
	if flags.Changed("retries") {
		s.ReadRetries = opts.retries
	}
	if flags.Changed("scan-limit") {
		s.ScanLimit = opts.scanLimit
	}
	if flags.Changed("log-level") {
		s.LogLevel = opts.logLevel
	}
	if opts.verbose {
		s.LogLevel = "debug"
	}
}

func newLogger(s settings.Settings, out io.Writer) hclog.Logger {
	level := hclog.LevelFromString(s.LogLevel)
	if level == hclog.NoLevel {
		level = hclog.Warn
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "dvdread",
		Level:  level,
		Output: out,
	})
}

func librarySettings(s settings.Settings) dvdread.Settings {
	return dvdread.Settings{
		ReadRetries:      s.ReadRetries,
		ScanLimit:        s.ScanLimit,
		MinTitleDuration: s.MinTitleDuration,
		ReportFileName:   s.ReportFileName,
	}
}

func newTitlesCmd(root *rootOptions) *cobra.Command {
	var opts titlesOptions
	cmd := &cobra.Command{
		Use:   "titles <path>",
		Short: "List the titles of a disc folder or image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd, root)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("min-duration") {
				s.MinTitleDuration = opts.minDuration
			}
			if opts.reportFile != "" {
				s.ReportFileName = opts.reportFile
			}
			return runTitles(cmd, args[0], s, opts)
		},
	}
	cmd.Flags().DurationVar(&opts.minDuration, "min-duration", 10*time.Second, "Skip titles shorter than this")
	cmd.Flags().BoolVar(&opts.yaml, "yaml", false, "Print the catalog as YAML")
	cmd.Flags().BoolVar(&opts.report, "report", false, "Write a text report")
	cmd.Flags().StringVarP(&opts.reportFile, "reportfilename", "o", "", "The report filename, {0} is replaced by the volume label")
	return cmd
}

func runTitles(cmd *cobra.Command, path string, s settings.Settings, opts titlesOptions) error {
	out := cmd.OutOrStdout()
	result, err := dvdread.Scan(cmd.Context(), dvdread.Options{
		Path:     path,
		Settings: librarySettings(s),
		Logger:   newLogger(s, cmd.ErrOrStderr()),
	})
	if err != nil {
		return err
	}

	if opts.yaml {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode catalog: %w", err)
		}
		if err := enc.Close(); err != nil {
			return err
		}
	} else {
		printTitles(out, result)
	}

	if opts.report || opts.reportFile != "" {
		name, err := report.WriteReport("", result.Disc.Label, result.ScannedTitles(), report.ScanResult{
			TitleCount:  result.Disc.Titles,
			MainFeature: mainTitle(result),
			Skipped:     skippedErrors(result.Skipped),
		}, s)
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		if name != "-" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Report written: %s\n", name)
		}
	}
	return nil
}

func printTitles(out io.Writer, result dvdread.Result) {
	fmt.Fprintf(out, "%-16s%s\n", "Disc Label:", result.Disc.Label)
	fmt.Fprintf(out, "%-16s%d\n\n", "Titles:", result.Disc.Titles)
	fmt.Fprintf(out, "%-8s%-12s%-10s%-8s%s\n", "Title", "Length", "Chapters", "Angles", "Size")
	fmt.Fprintf(out, "%-8s%-12s%-10s%-8s%s\n", "-----", "------", "--------", "------", "----")
	for _, t := range result.Titles {
		name := fmt.Sprintf("%d", t.Index)
		if t.MainFeature {
			name += "*"
		}
		fmt.Fprintf(out, "%-8s%-12s%-10d%-8d%s\n", name, util.FormatDuration(t.Duration, false), t.Chapters, t.Angles,
			util.FormatFileSize(float64(t.SizeBytes), true))
	}
	if len(result.Skipped) > 0 {
		fmt.Fprintf(out, "\n%d titles skipped\n", len(result.Skipped))
	}
}

func mainTitle(result dvdread.Result) *dvdread.Title {
	for _, t := range result.ScannedTitles() {
		if t.Index == result.MainFeature {
			return t
		}
	}
	return nil
}

func skippedErrors(skipped map[int]string) map[int]error {
	out := make(map[int]error, len(skipped))
	for index, msg := range skipped {
		out[index] = errors.New(msg)
	}
	return out
}

func newRipCmd(root *rootOptions) *cobra.Command {
	var opts ripOptions
	cmd := &cobra.Command{
		Use:   "rip <path>",
		Short: "Write the packs of a title in playback order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd, root)
			if err != nil {
				return err
			}
			return runRip(cmd, args[0], s, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.title, "title", "t", 0, "Title number (default: main feature)")
	cmd.Flags().IntVarP(&opts.angle, "angle", "a", 1, "Angle number")
	cmd.Flags().Float64Var(&opts.seek, "seek", 0, "Start at this fraction of the title")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file, - for stdout")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runRip(cmd *cobra.Command, path string, s settings.Settings, opts ripOptions) error {
	logger := newLogger(s, cmd.ErrOrStderr())
	disc, err := dvdread.Open(path, dvdread.WithSettings(librarySettings(s)), dvdread.WithLogger(logger))
	if err != nil {
		return err
	}
	defer disc.Close()

	title, err := pickTitle(disc, opts.title, s.MinTitleDuration)
	if err != nil {
		return err
	}
	if err := disc.Start(title, opts.angle); err != nil {
		return err
	}
	defer disc.Stop()
	if opts.seek > 0 {
		if err := disc.Seek(opts.seek); err != nil {
			return err
		}
	}

	var out io.Writer = cmd.OutOrStdout()
	if opts.output != "-" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	var packs int64
	chapter := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := disc.Read()
		if errors.Is(err, dvdread.ErrEndOfTitle) {
			break
		}
		if err != nil {
			return fmt.Errorf("title %d after %d packs: %w", title.Index, packs, err)
		}
		if p.NewChapter > 0 && p.NewChapter != chapter {
			chapter = p.NewChapter
			logger.Info("chapter", "title", title.Index, "chapter", chapter, "block", p.LBA)
		}
		if _, err := out.Write(p.Data); err != nil {
			return err
		}
		packs++
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Title %d: wrote %s packs (%s)\n", title.Index,
		util.FormatNumber(packs), util.FormatFileSize(float64(packs*dvdread.SectorSize), true))
	return nil
}

// pickTitle scans the requested title, or every title when index is 0 and
// returns the main feature.
func pickTitle(disc dvdread.Disc, index int, minDuration time.Duration) (*dvdread.Title, error) {
	if index > 0 {
		return disc.TitleScan(index, 0)
	}
	var titles []*dvdread.Title
	for i := 1; i <= disc.TitleCount(); i++ {
		t, err := disc.TitleScan(i, minDuration)
		if err != nil {
			continue
		}
		titles = append(titles, t)
	}
	feature := disc.MainFeature(titles)
	if feature == nil {
		return nil, fmt.Errorf("%w: no title longer than %s", dvdread.ErrNotFound, minDuration)
	}
	return feature, nil
}

func runSelfUpdate(ctx context.Context, out io.Writer) error {
	if version == "" || version == "dev" {
		return errors.New("self-update is only available in release builds")
	}

	if _, err := semver.ParseTolerant(version); err != nil {
		return fmt.Errorf("could not parse version: %w", err)
	}

	latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(updateSlug))
	if err != nil {
		return fmt.Errorf("error occurred while detecting version: %w", err)
	}
	if !found {
		return fmt.Errorf("latest version for %s/%s could not be found from github repository", updateSlug, version)
	}

	if latest.LessOrEqual(strings.TrimPrefix(version, "v")) {
		fmt.Fprintf(out, "Current binary is the latest version: %s\n", version)
		return nil
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("could not locate executable path: %w", err)
	}

	if err := selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe); err != nil {
		return fmt.Errorf("error occurred while updating binary: %w", err)
	}

	fmt.Fprintf(out, "Successfully updated to version: %s\n", latest.Version())
	return nil
}
