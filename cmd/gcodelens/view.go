package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/1103837067/GcodeLens/pkg/compare"
	"github.com/1103837067/GcodeLens/pkg/logging"
	"github.com/1103837067/GcodeLens/pkg/session"
	"github.com/1103837067/GcodeLens/pkg/types"
	"github.com/1103837067/GcodeLens/pkg/view"
)

var (
	viewMode      string
	viewManifestA string
	viewManifestB string
	viewService   string
	viewNoCompare bool
	viewLogFile   string
)

var viewCmd = &cobra.Command{
	Use:   "view [fileA fileB]",
	Short: "Interactively compare two programs",
	Long: `Launch an interactive TUI that draws both toolpaths and lists their line
differences.

Features:
  - Braille canvas with pan (hjkl), zoom (+/-, mouse wheel) and fit (f)
  - Separated and overlaid layouts (m)
  - Changed/added/removed tabs with paging (n/p)
  - Programs are parsed in the background and drawn as they arrive

Without arguments the programs of the previous parse are restored from the
cache and only drawn.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("accepts 0 or 2 arg(s), received %d", len(args))
		}
		return nil
	},
	RunE: runView,
}

func init() {
	viewCmd.Flags().StringVar(&viewMode, "mode", "separated", "Layout mode: separated, overlaid")
	viewCmd.Flags().StringVar(&viewManifestA, "manifest-a", "", "Manifest JSON for program A")
	viewCmd.Flags().StringVar(&viewManifestB, "manifest-b", "", "Manifest JSON for program B")
	viewCmd.Flags().StringVar(&viewService, "service", "", "Comparison service base URL")
	viewCmd.Flags().BoolVar(&viewNoCompare, "no-compare", false, "Only draw the programs")
	viewCmd.Flags().StringVar(&viewLogFile, "log-file", "", "Write logs to this file while the viewer runs")
}

func runView(cmd *cobra.Command, args []string) error {
	mode, err := types.ParseMode(viewMode)
	if err != nil {
		return err
	}
	restore := len(args) == 0
	var in compare.Input
	if !restore {
		in, err = buildInput(args[0], args[1], viewManifestA, viewManifestB)
		if err != nil {
			return err
		}
	}

	// The alternate screen owns the terminal; logs go to a file or nowhere.
	logger = logging.Nop()
	if viewLogFile != "" {
		f, err := os.OpenFile(viewLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		defer f.Close()
		logger = logging.New(logging.Config{Level: cfg.Log.Level, Format: "json", Output: f})
	}

	var (
		p    *tea.Program
		core *session.Core
	)
	core, err = newSession(0, mode, func(session.Event) {
		// Restore publishes before the program exists; New picks that up.
		if p != nil {
			p.Send(view.SnapshotMsg{Snapshot: core.Snapshot()})
		}
	})
	if err != nil {
		return err
	}
	defer core.Close()

	title := fmt.Sprintf("gcodelens %s vs %s", in.NameA, in.NameB)
	if restore {
		if err := core.Restore(); err != nil {
			return err
		}
		snap := core.Snapshot()
		if snap.Combined == nil {
			return fmt.Errorf("nothing cached in %s; pass two files", cfg.Cache.Path)
		}
		title = fmt.Sprintf("gcodelens %s vs %s", snap.A.Name, snap.B.Name)
	}

	model := view.New(core.Snapshot(), nil,
		view.WithSession(core),
		view.WithPageSize(cfg.View.PageSize),
		view.WithTitle(title),
	)
	p = tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if !restore {
		g.Go(func() error {
			_, err := core.LoadAndWait(gctx, types.SlotA, in.NameA, string(in.GcodeA))
			return err
		})
		g.Go(func() error {
			_, err := core.LoadAndWait(gctx, types.SlotB, in.NameB, string(in.GcodeB))
			return err
		})
	}
	if !restore && !viewNoCompare {
		go func() {
			result, err := newComparer(viewService).Compare(ctx, in)
			if ctx.Err() != nil {
				return
			}
			p.Send(view.ResultMsg{Result: result, Err: err})
		}()
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running view TUI: %w", err)
	}
	cancel()
	// parse failures were already shown in the canvas legend
	_ = g.Wait()
	return nil
}
