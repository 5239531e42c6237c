package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/1103837067/GcodeLens/pkg/compare"
	"github.com/1103837067/GcodeLens/pkg/pager"
	"github.com/1103837067/GcodeLens/pkg/store"
	"github.com/1103837067/GcodeLens/pkg/types"
)

var (
	reportFormat   string
	reportColor    string
	reportKind     string
	reportPage     int
	reportPageSize int
)

// styles holds the report colour formatters.
type styles struct {
	heading  *color.Color
	label    *color.Color
	slotA    *color.Color
	slotB    *color.Color
	changed  *color.Color
	added    *color.Color
	removed  *color.Color
	metadata *color.Color
}

// newStyles creates color formatters for report output
// enabled=false respects --color=never and NO_COLOR
func newStyles(enabled bool) *styles {
	s := &styles{
		heading:  color.New(color.Bold, color.FgHiWhite),
		label:    color.New(color.Bold),
		slotA:    color.New(color.FgHiBlue),
		slotB:    color.New(color.FgHiRed),
		changed:  color.New(color.FgYellow),
		added:    color.New(color.FgGreen),
		removed:  color.New(color.FgRed),
		metadata: color.New(color.FgHiBlack),
	}

	if !enabled {
		for _, c := range []*color.Color{s.heading, s.label, s.slotA, s.slotB, s.changed, s.added, s.removed, s.metadata} {
			c.DisableColor()
		}
	}
	return s
}

func (s *styles) kind(k types.ChangeKind) *color.Color {
	switch k {
	case types.KindAdded:
		return s.added
	case types.KindRemoved:
		return s.removed
	default:
		return s.changed
	}
}

var reportCmd = &cobra.Command{
	Use:   "report [result.json]",
	Short: "Print a comparison report",
	Long: `Print a comparison result: line statistics, machining analysis of both
programs, manifest differences and one page of line changes. Without an
argument the most recent comparison in the cache is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "human", "Output format: human, json")
	reportCmd.Flags().StringVar(&reportColor, "color", "auto", "Color output: auto, always, never")
	reportCmd.Flags().StringVar(&reportKind, "kind", "all", "Change kind to list: all, changed, added, removed")
	reportCmd.Flags().IntVar(&reportPage, "page", 1, "Page of changes to list")
	reportCmd.Flags().IntVar(&reportPageSize, "page-size", 0, "Changes per page (default from config)")
}

func runReport(cmd *cobra.Command, args []string) error {
	var (
		result *compare.Result
		err    error
	)
	if len(args) == 1 {
		result, err = loadResultFile(args[0])
	} else {
		result, err = loadLatestResult()
	}
	if err != nil {
		return err
	}

	switch reportFormat {
	case "json":
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	case "human":
		opts, err := reportOptionsFromFlags()
		if err != nil {
			return err
		}
		return outputReportHuman(cmd.OutOrStdout(), result, opts)
	default:
		return fmt.Errorf("unknown output format: %s", reportFormat)
	}
}

func loadResultFile(path string) (*compare.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading result: %w", err)
	}
	var result compare.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decoding result %s: %w", path, err)
	}
	return &result, nil
}

func loadLatestResult() (*compare.Result, error) {
	s, err := openStore()
	if err != nil {
		return nil, err
	}
	defer s.Close()

	c, err := s.LatestComparison()
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("no comparison in cache %s; run compare first or pass a result file", cfg.Cache.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("loading comparison: %w", err)
	}
	var result compare.Result
	if err := json.Unmarshal(c.Data, &result); err != nil {
		return nil, fmt.Errorf("decoding comparison %s: %w", c.ID, err)
	}
	return &result, nil
}

// reportOptions select what the human report lists.
type reportOptions struct {
	Kinds    []types.ChangeKind
	Page     int
	PageSize int
	Color    bool
}

func reportOptionsFromFlags() (reportOptions, error) {
	opts := reportOptions{Page: reportPage, PageSize: reportPageSize}
	if opts.PageSize <= 0 {
		opts.PageSize = cfg.View.PageSize
	}
	if reportKind == "all" || reportKind == "" {
		opts.Kinds = []types.ChangeKind{types.KindChanged, types.KindAdded, types.KindRemoved}
	} else {
		k, err := types.ParseChangeKind(reportKind)
		if err != nil {
			return opts, err
		}
		opts.Kinds = []types.ChangeKind{k}
	}

	opts.Color = colorEnabled(reportColor)
	return opts, nil
}

// colorEnabled resolves --color. auto means stdout is a terminal and
// NO_COLOR is unset.
func colorEnabled(mode string) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	default: // "auto"
		return term.IsTerminal(int(os.Stdout.Fd())) && os.Getenv("NO_COLOR") == ""
	}
}

func outputReportHuman(out io.Writer, result *compare.Result, opts reportOptions) error {
	s := newStyles(opts.Color)

	fmt.Fprintln(out, s.heading.Sprint("=== GcodeLens Report ==="))
	fmt.Fprintf(out, "%s %s %s %s\n",
		s.label.Sprint("Files:"),
		s.slotA.Sprint(orDash(result.File1Name)),
		s.metadata.Sprint("vs"),
		s.slotB.Sprint(orDash(result.File2Name)))

	if d := result.GcodeDiff; d != nil {
		st := d.Statistics
		fmt.Fprintf(out, "\n%s\n", s.heading.Sprint("Statistics"))
		fmt.Fprintf(out, "  %s %d  %s %s  %s %s  %s %s\n",
			s.label.Sprint("Total lines:"), st.TotalLines,
			s.label.Sprint("Changed:"), s.changed.Sprint(st.ChangedLines),
			s.label.Sprint("Added:"), s.added.Sprint(st.AddedLines),
			s.label.Sprint("Removed:"), s.removed.Sprint(st.RemovedLines))

		writeAnalysis(out, s, d)
	}

	writeManifest(out, s, result.DifferentModules(), result.ManifestDiff != nil)

	records := result.Changes()
	groups := pager.GroupByKind(records)
	for _, kind := range opts.Kinds {
		group := groups[kind]
		pages := pager.PageCount(len(group), opts.PageSize)
		fmt.Fprintf(out, "\n%s %s\n",
			s.heading.Sprintf("Changes: %s", kind),
			s.metadata.Sprintf("(%d, page %d/%d)", len(group), min(opts.Page, max(pages, 1)), max(pages, 1)))
		for _, r := range pager.Page(group, opts.Page, opts.PageSize) {
			fmt.Fprintf(out, "  %s %6d  %s\n", s.kind(kind).Sprint(marker(kind)), r.LineNumber, changeText(r))
		}
	}
	if notice := result.Notice(); notice != "" {
		fmt.Fprintf(out, "\n%s\n", s.changed.Sprint(notice))
	}
	return nil
}

func writeAnalysis(out io.Writer, s *styles, d *compare.GcodeDiff) {
	a, b := d.AnalysisA, d.AnalysisB
	fmt.Fprintf(out, "\n%s\n", s.heading.Sprint("Analysis"))
	fmt.Fprintf(out, "  %-18s %14s %14s %10s\n", "", s.slotA.Sprint("A"), s.slotB.Sprint("B"), "change")

	row := func(label, unit string, va, vb float64, rate *float64) {
		change := ""
		if rate != nil {
			change = fmt.Sprintf("%+.1f%%", *rate)
		}
		fmt.Fprintf(out, "  %-18s %14s %14s %10s\n", label,
			fmt.Sprintf("%.2f%s", va, unit), fmt.Sprintf("%.2f%s", vb, unit), change)
	}
	rates := d.Analysis
	row("Commands", "", float64(a.Commands.Total()), float64(b.Commands.Total()), &rates.CommandChange)
	row("Path length", " mm", a.Path.TotalLength, b.Path.TotalLength, &rates.PathLengthChange)
	row("  working", " mm", a.Path.WorkingLength, b.Path.WorkingLength, nil)
	row("  rapid", " mm", a.Path.RapidLength, b.Path.RapidLength, nil)
	row("Work area", " mm2", a.Path.Area.Size, b.Path.Area.Size, &rates.AreaChange)
	row("Avg speed", "", a.Speed.AvgSpeed, b.Speed.AvgSpeed, &rates.SpeedChange)
	row("Max speed", "", a.Speed.MaxSpeed, b.Speed.MaxSpeed, nil)
	row("Est. time", " s", a.Time.TotalTime, b.Time.TotalTime, nil)
}

func writeManifest(out io.Writer, s *styles, modules []compare.ModuleReport, present bool) {
	if !present {
		return
	}
	fmt.Fprintf(out, "\n%s\n", s.heading.Sprint("Manifest"))
	if len(modules) == 0 {
		fmt.Fprintln(out, "  no differences")
		return
	}
	for _, m := range modules {
		fmt.Fprintf(out, "  %s %s\n", s.label.Sprint("Module:"), m.Name)
		for _, p := range m.Parameters {
			if !p.Different {
				continue
			}
			fmt.Fprintf(out, "    %s: %s -> %s\n", p.Name, s.slotA.Sprint(formatValue(p.Value1)), s.slotB.Sprint(formatValue(p.Value2)))
		}
	}
}

func marker(k types.ChangeKind) string {
	switch k {
	case types.KindAdded:
		return "+"
	case types.KindRemoved:
		return "-"
	default:
		return "~"
	}
}

func changeText(r types.ChangeRecord) string {
	if r.Kind == types.KindChanged && r.OldText != nil && r.NewText != nil {
		return *r.OldText + "  =>  " + *r.NewText
	}
	return r.Text()
}

func formatValue(v interface{}) string {
	if v == nil {
		return "(none)"
	}
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
