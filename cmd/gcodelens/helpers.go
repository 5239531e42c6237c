package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"

	"github.com/1103837067/GcodeLens/pkg/batch"
	"github.com/1103837067/GcodeLens/pkg/compare"
	"github.com/1103837067/GcodeLens/pkg/session"
	"github.com/1103837067/GcodeLens/pkg/store"
	"github.com/1103837067/GcodeLens/pkg/types"
)

// emptyManifest stands in for a manifest that was not given.
const emptyManifest = "{}"

// program is one input file.
type program struct {
	Path    string
	Name    string
	Content string
}

func readProgram(path string) (program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return program{}, fmt.Errorf("reading %s: %w", path, err)
	}
	return program{Path: path, Name: filepath.Base(path), Content: string(data)}, nil
}

func readPrograms(paths []string) ([]program, error) {
	out := make([]program, len(paths))
	for i, p := range paths {
		prog, err := readProgram(p)
		if err != nil {
			return nil, err
		}
		out[i] = prog
	}
	return out, nil
}

func readManifest(path string) ([]byte, error) {
	if path == "" {
		return []byte(emptyManifest), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return data, nil
}

func openStore() (store.Store, error) {
	s, err := store.New(store.Config{Path: cfg.Cache.Path})
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	return s, nil
}

func newScheduler(batchSize int) *batch.Scheduler {
	if batchSize <= 0 {
		batchSize = cfg.Parser.BatchSize
	}
	return batch.New(
		batch.WithConfig(batch.Config{BatchSize: batchSize}),
		batch.WithSkipOpcodes(cfg.Parser.SkipOpcodes),
		batch.WithLogger(logger),
	)
}

// newSession builds a session over the configured cache. The session owns
// the store and closes it.
func newSession(batchSize int, mode types.Mode, observer func(session.Event)) (*session.Core, error) {
	st, err := openStore()
	if err != nil {
		return nil, err
	}
	opts := []session.Option{
		session.WithScheduler(newScheduler(batchSize)),
		session.WithStore(st),
		session.WithLogger(logger),
		session.WithMode(mode),
	}
	if observer != nil {
		opts = append(opts, session.WithObserver(observer))
	}
	return session.NewCore(opts...), nil
}

// newComparer picks the remote service when a URL is configured and the
// built-in comparer otherwise. Results are memoized for the process.
func newComparer(serviceURL string) compare.Comparer {
	if serviceURL == "" {
		serviceURL = cfg.Compare.ServiceURL
	}
	var c compare.Comparer = compare.NewLocal()
	if serviceURL != "" {
		c = compare.NewClient(serviceURL, &http.Client{Timeout: cfg.Compare.Timeout})
		logger.Debug().Str("url", serviceURL).Msg("using comparison service")
	}
	return compare.WithCache(c, compare.NewCache())
}

// slotProgress drives one progress bar from the progress of both slots.
type slotProgress struct {
	mu    sync.Mutex
	bar   *progressbar.ProgressBar
	slots map[types.Slot]int
}

func newSlotProgress(w io.Writer, slots int, description string) *slotProgress {
	bar := progressbar.NewOptions(
		slots*100,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(w),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &slotProgress{bar: bar, slots: make(map[types.Slot]int)}
}

func (p *slotProgress) observe(ev session.Event) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots[ev.Slot] = ev.Progress
	total := 0
	for _, v := range p.slots {
		total += v
	}
	_ = p.bar.Set(total)
}

func (p *slotProgress) finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Finish()
}

func newSpinner(w io.Writer, message string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = w
	return s
}
