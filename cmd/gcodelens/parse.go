package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/1103837067/GcodeLens/pkg/session"
	"github.com/1103837067/GcodeLens/pkg/types"
)

var (
	parseFormat    string
	parseBatchSize int
	parseMode      string
)

var parseCmd = &cobra.Command{
	Use:   "parse <fileA> [fileB]",
	Short: "Extract toolpaths from one or two programs",
	Long: `Parse one or two G-code programs into slots A and B, in parallel, and print
their vector groups, raster points and bounds together with the layout that
places them.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVar(&parseFormat, "format", "human", "Output format: human, json")
	parseCmd.Flags().IntVar(&parseBatchSize, "batch-size", 0, "Lines per batch (default from config)")
	parseCmd.Flags().StringVar(&parseMode, "mode", "separated", "Layout mode: separated, overlaid")
}

func runParse(cmd *cobra.Command, args []string) error {
	if parseFormat != "human" && parseFormat != "json" {
		return fmt.Errorf("unknown output format: %s", parseFormat)
	}
	mode, err := types.ParseMode(parseMode)
	if err != nil {
		return err
	}
	programs, err := readPrograms(args)
	if err != nil {
		return err
	}

	var progress *slotProgress
	if !quiet {
		progress = newSlotProgress(cmd.ErrOrStderr(), len(programs), "parsing")
	}
	core, err := newSession(parseBatchSize, mode, progress.observe)
	if err != nil {
		return err
	}
	defer core.Close()

	snap, err := loadSlots(cmd, core, programs)
	progress.finish()
	if err != nil {
		return err
	}

	if parseFormat == "json" {
		return writeParseJSON(cmd.OutOrStdout(), snap)
	}
	writeParseHuman(cmd.OutOrStdout(), snap)
	return nil
}

// loadSlots parses programs into slots A and B concurrently and returns the
// settled snapshot.
func loadSlots(cmd *cobra.Command, core *session.Core, programs []program) (session.Snapshot, error) {
	g, ctx := errgroup.WithContext(cmd.Context())
	for i, prog := range programs {
		slot := types.Slots[i]
		g.Go(func() error {
			st, err := core.LoadAndWait(ctx, slot, prog.Name, prog.Content)
			if err != nil {
				return fmt.Errorf("slot %s (%s): %w", slot, prog.Path, err)
			}
			logger.Debug().
				Str("slot", string(slot)).
				Str("file", prog.Path).
				Bool("cached", st.Cached).
				Int("points", st.Program.PointCount()).
				Msg("slot loaded")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return session.Snapshot{}, err
	}
	return core.Snapshot(), nil
}

// parseOutput is the JSON form of a parsed session.
type parseOutput struct {
	session.Snapshot
	Programs map[types.Slot]*types.ParsedProgram `json:"programs"`
}

func writeParseJSON(w io.Writer, snap session.Snapshot) error {
	out := parseOutput{Snapshot: snap, Programs: map[types.Slot]*types.ParsedProgram{}}
	for _, slot := range types.Slots {
		if p := snap.Slot(slot).Program; p != nil {
			out.Programs[slot] = p
		}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func writeParseHuman(w io.Writer, snap session.Snapshot) {
	fmt.Fprintf(w, "Mode: %s\n", snap.Mode)
	for _, slot := range types.Slots {
		st := snap.Slot(slot)
		if st.Program == nil {
			continue
		}
		fmt.Fprintf(w, "\nSlot %s: %s\n", slot, st.Name)
		fmt.Fprintf(w, "  Content ID:    %s\n", st.ContentID.Hex())
		fmt.Fprintf(w, "  Vector groups: %d (%d drawable)\n", len(st.Program.VectorPaths), len(st.Program.RenderableGroups()))
		fmt.Fprintf(w, "  Raster points: %d in %d strokes\n", len(st.Program.RasterData.Points()), len(st.Program.RasterData.Strokes()))
		if st.Malformed > 0 {
			fmt.Fprintf(w, "  Malformed:     %d lines\n", st.Malformed)
		}
		if st.Cached {
			fmt.Fprintf(w, "  Cached:        yes\n")
		}
		if st.Bounds != nil {
			fmt.Fprintf(w, "  Bounds:        (%g, %g) - (%g, %g)\n", st.Bounds.Min.X, st.Bounds.Min.Y, st.Bounds.Max.X, st.Bounds.Max.Y)
		} else {
			fmt.Fprintf(w, "  Bounds:        none\n")
		}
		if p := snap.Layout.For(slot); p != nil {
			fmt.Fprintf(w, "  Offset:        (%g, %g)\n", p.Offset.X, p.Offset.Y)
		}
	}
}
