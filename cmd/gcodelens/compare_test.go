package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1103837067/GcodeLens/pkg/compare"
	"github.com/1103837067/GcodeLens/pkg/config"
)

const (
	programA = "G0X0Y0\nG1X10Y0\nG1X10Y10\nM5\n"
	programB = "G0X0Y0\nG1X12Y0\nG1X10Y10\nM5\nM2\n"
)

// setupCLI points the cache at a temp dir and silences progress output.
func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	prevCfg, prevQuiet := cfg, quiet
	cfg = config.Default()
	cfg.Cache.Path = filepath.Join(dir, "cache.db")
	quiet = true
	t.Cleanup(func() { cfg, quiet = prevCfg, prevQuiet })
	return dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testCommand(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetContext(context.Background())
	return cmd
}

func TestCompare_JSONAndSaved(t *testing.T) {
	// Arrange
	dir := setupCLI(t)
	a := writeFile(t, dir, "a.gcode", programA)
	b := writeFile(t, dir, "b.gcode", programB)
	compareFormat, compareNoSave = "json", false
	t.Cleanup(func() { compareFormat = "human" })

	// Act
	var out bytes.Buffer
	require.NoError(t, runCompare(testCommand(&out), []string{a, b}))

	// Assert
	var result compare.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, "a.gcode", result.File1Name)
	assert.Equal(t, "b.gcode", result.File2Name)
	require.NotNil(t, result.GcodeDiff)
	assert.Equal(t, 1, result.GcodeDiff.Statistics.ChangedLines)
	assert.Equal(t, 1, result.GcodeDiff.Statistics.AddedLines)

	latest, err := loadLatestResult()
	require.NoError(t, err)
	assert.Equal(t, result.GcodeDiff.Statistics, latest.GcodeDiff.Statistics)
}

func TestCompare_MissingFile(t *testing.T) {
	dir := setupCLI(t)
	a := writeFile(t, dir, "a.gcode", programA)

	err := runCompare(testCommand(io.Discard), []string{a, filepath.Join(dir, "missing.gcode")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.gcode")
}

func TestReport_LatestHuman(t *testing.T) {
	dir := setupCLI(t)
	a := writeFile(t, dir, "a.gcode", programA)
	b := writeFile(t, dir, "b.gcode", programB)
	compareFormat, compareNoSave = "json", false
	t.Cleanup(func() { compareFormat = "human" })
	require.NoError(t, runCompare(testCommand(io.Discard), []string{a, b}))

	reportFormat, reportColor, reportKind, reportPage, reportPageSize = "human", "never", "all", 1, 0
	var out bytes.Buffer
	require.NoError(t, runReport(testCommand(&out), nil))

	output := out.String()
	assert.Contains(t, output, "=== GcodeLens Report ===")
	assert.Contains(t, output, "a.gcode vs b.gcode")
	assert.Contains(t, output, "Changed: 1")
	assert.Contains(t, output, "G1X10Y0  =>  G1X12Y0")
	assert.Contains(t, output, "+      5  M2")
	assert.Contains(t, output, "Path length")
}

func TestReport_KindFilterAndFile(t *testing.T) {
	dir := setupCLI(t)
	result := &compare.Result{
		File1Name: "a",
		File2Name: "b",
		GcodeDiff: &compare.GcodeDiff{Changes: []compare.Change{
			{LineNum: 1, Type: compare.ChangeTypeRemove, Content: "G0X1"},
			{LineNum: 2, Type: compare.ChangeTypeAdd, Content: "G0X2"},
		}},
	}
	data, err := json.Marshal(result)
	require.NoError(t, err)
	path := writeFile(t, dir, "result.json", string(data))

	reportFormat, reportColor, reportKind, reportPage, reportPageSize = "human", "never", "removed", 1, 10
	t.Cleanup(func() { reportKind, reportPageSize = "all", 0 })
	var out bytes.Buffer
	require.NoError(t, runReport(testCommand(&out), []string{path}))

	assert.Contains(t, out.String(), "Changes: removed")
	assert.Contains(t, out.String(), "G0X1")
	assert.NotContains(t, out.String(), "G0X2")
}

func TestReport_EmptyCache(t *testing.T) {
	setupCLI(t)
	reportFormat = "human"

	err := runReport(testCommand(io.Discard), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run compare first")
}

func TestReport_InvalidKind(t *testing.T) {
	dir := setupCLI(t)
	path := writeFile(t, dir, "result.json", `{"file1Name":"a"}`)

	reportFormat, reportKind = "human", "moved"
	t.Cleanup(func() { reportKind = "all" })
	err := runReport(testCommand(io.Discard), []string{path})
	assert.Error(t, err)
}

func TestRender_WritesPNG(t *testing.T) {
	dir := setupCLI(t)
	a := writeFile(t, dir, "a.gcode", programA)
	b := writeFile(t, dir, "b.gcode", programB)
	renderOutput = filepath.Join(dir, "out.png")
	renderWidth, renderHeight, renderMode, renderText = 320, 200, "overlaid", false
	t.Cleanup(func() { renderMode = "separated" })

	require.NoError(t, runRender(testCommand(io.Discard), []string{a, b}))

	f, err := os.Open(renderOutput)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())
}

func TestRender_Text(t *testing.T) {
	dir := setupCLI(t)
	a := writeFile(t, dir, "a.gcode", programA)
	renderText, renderCols, renderRows, renderMode = true, 20, 6, "separated"
	t.Cleanup(func() { renderText = false })

	var out bytes.Buffer
	require.NoError(t, runRender(testCommand(&out), []string{a}))

	assert.True(t, strings.ContainsFunc(out.String(), func(r rune) bool { return r > 0x2800 && r <= 0x28ff }))
}

func TestRender_NoToolpath(t *testing.T) {
	dir := setupCLI(t)
	a := writeFile(t, dir, "a.gcode", "; comment only\nM5\n")
	renderText = false

	err := runRender(testCommand(io.Discard), []string{a})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to draw")
}

func TestCompareServer_ServesClient(t *testing.T) {
	setupCLI(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveCompare(ctx, ln) }()

	client := compare.NewClient("http://"+ln.Addr().String(), nil)
	result, err := client.Compare(context.Background(), compare.Input{
		NameA: "a.gcode", GcodeA: []byte(programA), ManifestA: []byte(emptyManifest),
		NameB: "b.gcode", GcodeB: []byte(programB), ManifestB: []byte(emptyManifest),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.GcodeDiff.Statistics.AddedLines)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not shut down")
	}
}
