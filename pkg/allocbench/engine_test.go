package allocbench

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func requireShell(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("exec engine tests use sh")
	}
}

func TestExecEngineSuccess(t *testing.T) {
	requireShell(t)
	dir, err := ioutil.TempDir("", "allocbench")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "in.json")
	output := filepath.Join(dir, "out.json")
	assert.NoError(t, ioutil.WriteFile(input, []byte(`{"templates": []}`), 0644))

	// The appended input/output paths land in $0 and $1
	engine := &ExecEngine{Command: []string{"sh", "-c", `cp "$0" "$1"`}}
	assert.NoError(t, engine.Allocate(context.Background(), input, output))

	data, err := ioutil.ReadFile(output)
	assert.NoError(t, err)
	assert.Equal(t, `{"templates": []}`, string(data))
}

func TestExecEngineNonZeroExit(t *testing.T) {
	requireShell(t)
	engine := &ExecEngine{Command: []string{"sh", "-c", "echo boom >&2; exit 3"}}

	err := engine.Allocate(context.Background(), "in.json", "out.json")
	assert.Error(t, err)
	failed, ok := err.(*EngineFailedError)
	assert.True(t, ok)
	assert.Equal(t, 3, failed.ExitCode)
	assert.Contains(t, failed.Stderr, "boom")
}

func TestExecEngineTimeout(t *testing.T) {
	requireShell(t)
	engine := &ExecEngine{Command: []string{"sh", "-c", "sleep 5"}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := engine.Allocate(ctx, "in.json", "out.json")
	assert.Equal(t, ErrEngineTimeout, err)
}

func TestExecEngineStderrIsTruncated(t *testing.T) {
	requireShell(t)
	engine := &ExecEngine{Command: []string{"sh", "-c", "head -c 5000 /dev/zero | tr '\\0' 'x' >&2; exit 1"}}

	err := engine.Allocate(context.Background(), "in.json", "out.json")
	failed, ok := err.(*EngineFailedError)
	assert.True(t, ok)
	assert.Len(t, failed.Stderr, maxDiagnosticLen)
}

func TestNewExecEngineRejectsEmptyCommand(t *testing.T) {
	_, err := NewExecEngine(nil)
	assert.Error(t, err)
}
