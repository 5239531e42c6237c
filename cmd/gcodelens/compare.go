package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/1103837067/GcodeLens/pkg/compare"
	"github.com/1103837067/GcodeLens/pkg/types"
)

var (
	compareManifestA string
	compareManifestB string
	compareService   string
	compareFormat    string
	compareNoSave    bool
)

var compareCmd = &cobra.Command{
	Use:   "compare <fileA> <fileB>",
	Short: "Compare two programs and their manifests",
	Long: `Compare two G-code programs line by line and analyse both toolpaths. The
comparison runs locally unless --service (or compare.service_url in the
config) names a comparison service. The result is saved to the cache so
that report can print it again.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().StringVar(&compareManifestA, "manifest-a", "", "Manifest JSON for program A")
	compareCmd.Flags().StringVar(&compareManifestB, "manifest-b", "", "Manifest JSON for program B")
	compareCmd.Flags().StringVar(&compareService, "service", "", "Comparison service base URL")
	compareCmd.Flags().StringVar(&compareFormat, "format", "human", "Output format: human, json")
	compareCmd.Flags().BoolVar(&compareNoSave, "no-save", false, "Do not save the result to the cache")
}

func runCompare(cmd *cobra.Command, args []string) error {
	if compareFormat != "human" && compareFormat != "json" {
		return fmt.Errorf("unknown output format: %s", compareFormat)
	}
	in, err := buildInput(args[0], args[1], compareManifestA, compareManifestB)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Compare.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Compare.Timeout)
		defer cancel()
	}

	spin := newSpinner(cmd.ErrOrStderr(), "comparing "+in.NameA+" and "+in.NameB)
	if !quiet {
		spin.Start()
	}
	result, err := newComparer(compareService).Compare(ctx, in)
	spin.Stop()
	if err != nil {
		return fmt.Errorf("compare: %w", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	if !compareNoSave {
		if err := saveComparison(data); err != nil {
			logger.Warn().Err(err).Msg("result not cached")
		}
	}

	if compareFormat == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
	opts := reportOptions{
		Kinds:    []types.ChangeKind{types.KindChanged, types.KindAdded, types.KindRemoved},
		Page:     1,
		PageSize: cfg.View.PageSize,
		Color:    colorEnabled("auto"),
	}
	return outputReportHuman(cmd.OutOrStdout(), result, opts)
}

func buildInput(pathA, pathB, manifestA, manifestB string) (compare.Input, error) {
	programs, err := readPrograms([]string{pathA, pathB})
	if err != nil {
		return compare.Input{}, err
	}
	ma, err := readManifest(manifestA)
	if err != nil {
		return compare.Input{}, err
	}
	mb, err := readManifest(manifestB)
	if err != nil {
		return compare.Input{}, err
	}
	return compare.Input{
		NameA:     programs[0].Name,
		GcodeA:    []byte(programs[0].Content),
		ManifestA: ma,
		NameB:     programs[1].Name,
		GcodeB:    []byte(programs[1].Content),
		ManifestB: mb,
	}, nil
}

func saveComparison(data []byte) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	id := uuid.NewString()
	if err := s.SaveComparison(id, data); err != nil {
		return err
	}
	logger.Debug().Str("id", id).Int("bytes", len(data)).Msg("comparison cached")
	return nil
}
