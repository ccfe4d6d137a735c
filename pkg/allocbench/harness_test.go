package allocbench

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// fakeEngine returns canned outcomes keyed by input filename and writes the
// output file on success, mirroring the real engine's side effect.
type fakeEngine struct {
	failures map[string]error
	inFlight int32
	maxSeen  int32
}

func (e *fakeEngine) Allocate(ctx context.Context, inputPath, outputPath string) error {
	current := atomic.AddInt32(&e.inFlight, 1)
	defer atomic.AddInt32(&e.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&e.maxSeen)
		if current <= seen || atomic.CompareAndSwapInt32(&e.maxSeen, seen, current) {
			break
		}
	}

	if err, found := e.failures[filepath.Base(inputPath)]; found {
		return err
	}
	return ioutil.WriteFile(outputPath, []byte(`{"templates": []}`), 0644)
}

// blockingEngine waits for its context deadline, the shape of a real timeout.
type blockingEngine struct{}

func (e *blockingEngine) Allocate(ctx context.Context, inputPath, outputPath string) error {
	<-ctx.Done()
	return ErrEngineTimeout
}

func newTestHarness(engine AllocationEngine, workers int) *Harness {
	return &Harness{
		Engine:  engine,
		Workers: workers,
		Out:     &InteractiveOutput{ErrStream: ioutil.Discard, OutStream: ioutil.Discard},
		Log:     zap.NewNop().Sugar(),
	}
}

func makeInputFiles(t *testing.T, dir string, n int) []string {
	files := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("workload_100t_10o_300k_50r_%d.json", i))
		assert.NoError(t, ioutil.WriteFile(path, []byte(`{"templates": []}`), 0644))
		files = append(files, path)
	}
	return files
}

func TestHarnessAllSucceed(t *testing.T) {
	dir, err := ioutil.TempDir("", "allocbench")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)
	outDir := filepath.Join(dir, "allocated")
	files := makeInputFiles(t, dir, 6)

	engine := &fakeEngine{}
	h := newTestHarness(engine, 4)

	result, err := h.Run(files, outDir, make(chan struct{}))
	assert.NoError(t, err)
	assert.Len(t, result.Records, 6)
	assert.Equal(t, 6, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.True(t, result.AllSucceeded())
	assert.True(t, engine.maxSeen <= 4, "more than 4 invocations in flight")

	outputs, err := filepath.Glob(filepath.Join(outDir, "*.json"))
	assert.NoError(t, err)
	assert.Len(t, outputs, 6)
}

func TestHarnessIsolatesFailures(t *testing.T) {
	dir, err := ioutil.TempDir("", "allocbench")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)
	files := makeInputFiles(t, dir, 5)

	engine := &fakeEngine{failures: map[string]error{
		filepath.Base(files[1]): &EngineFailedError{ExitCode: 1, Stderr: "allocation blew up"},
		filepath.Base(files[3]): &EngineFailedError{ExitCode: 2},
	}}
	h := newTestHarness(engine, 2)

	result, err := h.Run(files, filepath.Join(dir, "allocated"), make(chan struct{}))
	assert.NoError(t, err)
	assert.Len(t, result.Records, 5)
	assert.Equal(t, 3, result.Succeeded)
	assert.Equal(t, 2, result.Failed)
	assert.False(t, result.AllSucceeded())

	sort.Strings(result.FailedFiles)
	assert.Equal(t, []string{filepath.Base(files[1]), filepath.Base(files[3])}, result.FailedFiles)

	// One record per submitted file, no silent drops
	recorded := map[string]PerformanceRecord{}
	for _, rec := range result.Records {
		recorded[rec.Filename] = rec
	}
	assert.Len(t, recorded, 5)
	assert.Equal(t, StatusFailed, recorded[filepath.Base(files[1])].Status)
	assert.Contains(t, recorded[filepath.Base(files[1])].ErrorMessage, "allocation blew up")
}

func TestHarnessClassifiesTimeouts(t *testing.T) {
	dir, err := ioutil.TempDir("", "allocbench")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)
	files := makeInputFiles(t, dir, 2)

	h := newTestHarness(&blockingEngine{}, 2)
	h.Timeout = 20 * time.Millisecond

	result, err := h.Run(files, filepath.Join(dir, "allocated"), make(chan struct{}))
	assert.NoError(t, err)
	assert.Len(t, result.Records, 2)
	assert.Equal(t, 2, result.Failed)
	for _, rec := range result.Records {
		assert.Equal(t, StatusFailed, rec.Status)
		assert.Contains(t, rec.ErrorMessage, "timeout")
	}
}

func TestHarnessStopHaltsSubmission(t *testing.T) {
	dir, err := ioutil.TempDir("", "allocbench")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)
	files := makeInputFiles(t, dir, 10)

	stopCh := make(chan struct{})
	close(stopCh)

	h := newTestHarness(&fakeEngine{}, 2)
	result, err := h.Run(files, filepath.Join(dir, "allocated"), stopCh)
	assert.NoError(t, err)
	// Nothing was submitted, and nothing was silently dropped either
	assert.Len(t, result.Records, 0)
}
