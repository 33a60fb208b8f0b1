// Package runner provides axe test's batch mode: running every trace/answer
// pair under a directory concurrently, using pkg/parallel's generic
// worker pool to fan checks out across a bounded number of goroutines.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/go-axe/axe/internal/history"
	"github.com/go-axe/axe/internal/model"
	"github.com/go-axe/axe/internal/obstrace"
	"github.com/go-axe/axe/internal/traceparser"
	"github.com/go-axe/axe/pkg/parallel"
	"github.com/go-axe/axe/pkg/utils"
	"github.com/go-axe/axe/pkg/writer"
)

// Pair is one trace file paired with its expected-verdict answer file.
type Pair struct {
	TraceFile  string
	AnswerFile string
}

// BatchResult is the outcome of checking every batch within one Pair.
type BatchResult struct {
	Pair     Pair
	Index    int  // batch index within the trace file
	Want     bool // expected verdict, true = admitted
	Got      bool
	Mismatch bool
	Err      error
	Duration time.Duration
}

// Options configures a Runner.
type Options struct {
	Model   model.Model
	Opts    model.Options
	Workers int // 0 = pkg/parallel's default

	// History, when non-nil, receives one CheckRecord per batch result.
	History *history.Store
	// ReportPath, when non-empty, receives a gzipped JSON summary.
	ReportPath string
	Logger     utils.Logger
}

// Runner drives axe test's directory batch mode: every trace file in a
// directory is checked against its model independently — each batch gets
// its own freshly constructed engine, so fanning work out across pairs
// never shares engine state across goroutines.
type Runner struct {
	opts Options
}

// New creates a Runner.
func New(opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = &utils.NullLogger{}
	}
	return &Runner{opts: opts}
}

// Summary aggregates the results of one Run.
type Summary struct {
	RunID     string        `json:"run_id"`
	Model     string        `json:"model"`
	Total     int           `json:"total"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Errored   int           `json:"errored"`
	Results   []BatchResult `json:"-"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// traceSuffixes are the recognized trace-file extensions, in priority
// order: plain text, gzip, zstd (see traceparser.DecompressIfNeeded).
var traceSuffixes = []string{".trace", ".trace.gz", ".trace.zst"}

// DiscoverPairs finds every `<name>.trace[.gz|.zst]` file under dir with a
// matching `<name>.ans` answer file, sorted by name.
func DiscoverPairs(dir string) ([]Pair, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var pairs []Pair
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		base, ok := traceBaseName(e.Name())
		if !ok {
			continue
		}
		ans := filepath.Join(dir, base+".ans")
		if _, err := os.Stat(ans); err != nil {
			continue
		}
		pairs = append(pairs, Pair{
			TraceFile:  filepath.Join(dir, e.Name()),
			AnswerFile: ans,
		})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].TraceFile < pairs[j].TraceFile })
	return pairs, nil
}

// traceBaseName strips a recognized trace suffix from name, reporting
// whether one matched.
func traceBaseName(name string) (string, bool) {
	for _, suf := range traceSuffixes {
		if strings.HasSuffix(name, suf) {
			return strings.TrimSuffix(name, suf), true
		}
	}
	return "", false
}

// Run checks every pair in dir concurrently and returns a Summary.
func (r *Runner) Run(ctx context.Context, dir string) (*Summary, error) {
	pairs, err := DiscoverPairs(dir)
	if err != nil {
		return nil, err
	}

	runID := history.NewRunID()
	started := time.Now()

	pool := parallel.NewWorkerPool[Pair, []BatchResult](
		parallel.DefaultPoolConfig().WithWorkers(workersOrDefault(r.opts.Workers)).WithMetrics(),
	)

	progress := parallel.NewProgressTracker(int64(len(pairs)), func(completed, total int64) {
		r.opts.Logger.Debug("checked %d/%d trace files", completed, total)
	}, 2*time.Second)
	progress.Start(ctx)

	taskResults := pool.ExecuteFunc(ctx, pairs, func(ctx context.Context, pair Pair) ([]BatchResult, error) {
		defer progress.Increment()
		return r.checkPair(ctx, pair)
	})
	progress.Stop()

	metrics := pool.Metrics()
	r.opts.Logger.Debug("batch run: %d files, %d failed to parse, avg %s/file", metrics.CompletedTasks, metrics.FailedTasks, metrics.AvgTaskTime)

	summary := &Summary{RunID: runID, Model: r.opts.Model.String(), StartedAt: started}
	var historyRows []history.CheckRecord

	for _, tr := range taskResults {
		if tr.Error != nil {
			summary.Errored++
			r.opts.Logger.Error("failed to check %s: %v", tr.Input.TraceFile, tr.Error)
			continue
		}
		for _, br := range tr.Result {
			summary.Total++
			switch {
			case br.Err != nil:
				summary.Errored++
			case br.Mismatch:
				summary.Failed++
			default:
				summary.Passed++
			}
			summary.Results = append(summary.Results, br)
			historyRows = append(historyRows, toHistoryRow(runID, r.opts.Model.String(), br))
		}
	}
	summary.Elapsed = time.Since(started)

	if r.opts.History != nil && len(historyRows) > 0 {
		if err := r.opts.History.RecordBatch(ctx, historyRows); err != nil {
			r.opts.Logger.Warn("failed to record history: %v", err)
		}
	}

	if r.opts.ReportPath != "" {
		if err := writer.NewGzipWriter[*Summary]().WriteToFile(summary, r.opts.ReportPath); err != nil {
			r.opts.Logger.Warn("failed to write report to %s: %v", r.opts.ReportPath, err)
		}
	}

	return summary, nil
}

func workersOrDefault(n int) int {
	if n > 0 {
		return n
	}
	return parallel.DefaultPoolConfig().MaxWorkers
}

// checkPair parses one trace file (possibly several "check"-separated
// batches) and its matching answer file (one O/N-prefixed line per batch),
// checking each batch against a freshly constructed engine. Opens one span
// for the whole file, with a span event marking the parse and one per
// batch decided — the engine itself doesn't expose canonicalize/build-
// edges/search as separate hooks, so those phases aren't split out further.
func (r *Runner) checkPair(ctx context.Context, pair Pair) ([]BatchResult, error) {
	_, span := obstrace.Tracer().Start(ctx, "check_trace", oteltrace.WithAttributes(
		obstrace.FileAttribute(pair.TraceFile),
		obstrace.ModelAttribute(r.opts.Model.String()),
	))
	defer span.End()

	traceData, err := os.ReadFile(pair.TraceFile)
	if err != nil {
		err = fmt.Errorf("failed to read %s: %w", pair.TraceFile, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	traceData, err = traceparser.DecompressIfNeeded(traceData)
	if err != nil {
		err = fmt.Errorf("failed to decompress %s: %w", pair.TraceFile, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	batches, err := traceparser.New(traceparser.Options{IgnoreTimestamps: r.opts.Opts.IgnoreTimestamps}).Parse(bytes.NewReader(traceData))
	if err != nil {
		err = fmt.Errorf("failed to parse %s: %w", pair.TraceFile, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.AddEvent("parsed", oteltrace.WithAttributes(attribute.Int("batches", len(batches))))

	wants, err := readAnswers(pair.AnswerFile)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(wants) != len(batches) {
		err := fmt.Errorf("%s: %d expected verdicts for %d trace batches", pair.AnswerFile, len(wants), len(batches))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	results := make([]BatchResult, len(batches))
	for i, batch := range batches {
		start := time.Now()
		got, err := model.Check(r.opts.Model, batch, r.opts.Opts)
		results[i] = BatchResult{
			Pair:     pair,
			Index:    i,
			Want:     wants[i],
			Got:      got,
			Mismatch: err == nil && got != wants[i],
			Err:      err,
			Duration: time.Since(start),
		}
		if err != nil {
			span.AddEvent("check_error", oteltrace.WithAttributes(attribute.Int("batch", i), attribute.String("error", err.Error())))
			continue
		}
		span.AddEvent("checked", oteltrace.WithAttributes(
			attribute.Int("batch", i),
			attribute.Bool("admitted", got),
			attribute.Bool("mismatch", results[i].Mismatch),
		))
	}
	return results, nil
}

// readAnswers reads one O/N verdict per non-blank, non-comment line.
func readAnswers(path string) ([]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open answer file %s: %w", path, err)
	}
	defer f.Close()

	var wants []bool
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch strings.ToUpper(line)[0] {
		case 'O':
			wants = append(wants, true)
		case 'N':
			wants = append(wants, false)
		default:
			return nil, fmt.Errorf("%s: malformed verdict line %q, want O or N", path, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read answer file %s: %w", path, err)
	}
	return wants, nil
}

func toHistoryRow(runID, modelName string, br BatchResult) history.CheckRecord {
	verdict := "NO"
	if br.Got {
		verdict = "OK"
	}
	return history.CheckRecord{
		RunID:      runID,
		Model:      modelName,
		File:       fmt.Sprintf("%s#%d", br.Pair.TraceFile, br.Index),
		Verdict:    verdict,
		Mismatch:   br.Mismatch,
		DurationMS: br.Duration.Milliseconds(),
	}
}
