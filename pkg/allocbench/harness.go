package allocbench

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codahale/hdrhistogram"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultWorkers = 4

// Harness drives the allocation engine over a batch of workload files with
// bounded parallelism. One file's failure or timeout never aborts the batch;
// every submitted file yields exactly one PerformanceRecord.
type Harness struct {
	Engine  AllocationEngine
	Workers int
	Timeout time.Duration
	Out     Output
	Log     *zap.SugaredLogger
}

type HarnessResult struct {
	Records     []PerformanceRecord
	Succeeded   int
	Failed      int
	FailedFiles []string

	// Sum of per-invocation wall-clock time, across all workers
	TotalSeconds float64
	// Per-file execution time in microseconds
	Times *hdrhistogram.Histogram
}

func (r *HarnessResult) AllSucceeded() bool {
	return r.Failed == 0
}

// Run submits files in input order to a fixed pool of workers and collects
// completions in whatever order they land. A close of stopCh halts submission
// of not-yet-started files; in-flight invocations run to completion and are
// still recorded.
func (h *Harness) Run(files []string, outDir string, stopCh <-chan struct{}) (*HarnessResult, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create output directory %s", outDir)
	}
	workers := h.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	tasks := make(chan string)
	records := make(chan PerformanceRecord, len(files))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for inputPath := range tasks {
				records <- h.runOne(inputPath, outDir)
			}
		}()
	}

	result := &HarnessResult{
		Times: hdrhistogram.New(0, 60*60*1000000, 5),
	}
	total := len(files)
	var collectWg sync.WaitGroup
	collectWg.Add(1)
	go func() {
		defer collectWg.Done()
		done := 0
		for rec := range records {
			done++
			result.Records = append(result.Records, rec)
			result.TotalSeconds += rec.Seconds
			_ = result.Times.RecordValue(int64(rec.Seconds * 1000000))
			if rec.Status == StatusSuccess {
				result.Succeeded++
				h.Log.Infof("[%d/%d] %s ok in %.2fs", done, total, rec.Filename, rec.Seconds)
			} else {
				result.Failed++
				result.FailedFiles = append(result.FailedFiles, rec.Filename)
				h.Log.Warnf("[%d/%d] %s failed after %.2fs: %s", done, total, rec.Filename, rec.Seconds, rec.ErrorMessage)
			}
			h.Out.ReportProgress(ProgressReport{
				Section:      "allocate",
				Step:         "run",
				Completeness: float64(done) / float64(total),
			})
		}
	}()

	submitted := 0
submission:
	for _, f := range files {
		// Checked separately from the send so an already-requested stop never
		// races a ready worker.
		select {
		case <-stopCh:
			h.Log.Warnf("stop requested, %d of %d files not submitted", total-submitted, total)
			break submission
		default:
		}
		select {
		case <-stopCh:
			h.Log.Warnf("stop requested, %d of %d files not submitted", total-submitted, total)
			break submission
		case tasks <- f:
			submitted++
		}
	}
	close(tasks)
	wg.Wait()
	close(records)
	collectWg.Wait()

	return result, nil
}

func (h *Harness) runOne(inputPath, outDir string) PerformanceRecord {
	filename := filepath.Base(inputPath)
	outputPath := filepath.Join(outDir, filename)

	ctx := context.Background()
	cancel := func() {}
	if h.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
	}
	defer cancel()

	start := time.Now()
	err := h.Engine.Allocate(ctx, inputPath, outputPath)
	elapsed := time.Since(start).Seconds()

	if err == nil {
		return PerformanceRecord{Filename: filename, Status: StatusSuccess, Seconds: elapsed}
	}
	msg := err.Error()
	if errors.Cause(err) == ErrEngineTimeout {
		msg = fmt.Sprintf("timeout (>%s)", h.Timeout)
	}
	return PerformanceRecord{
		Filename:     filename,
		Status:       StatusFailed,
		Seconds:      elapsed,
		ErrorMessage: truncate(msg, maxDiagnosticLen),
	}
}
