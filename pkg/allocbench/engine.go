package allocbench

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/pkg/errors"
)

// AllocationEngine runs the external isolation-level allocator over a single
// workload file. It reads inputPath and writes the allocated workload, same
// schema with levels possibly rewritten, to outputPath. Implementations must
// honor ctx cancellation.
type AllocationEngine interface {
	Allocate(ctx context.Context, inputPath, outputPath string) error
}

// Diagnostic messages carried into performance records are capped at this
// many bytes; engine stack traces can run to pages.
const maxDiagnosticLen = 200

// ErrEngineTimeout marks an invocation that was killed by its deadline. The
// harness records it as a distinct failure reason rather than a crash.
var ErrEngineTimeout = errors.New("engine invocation timed out")

// EngineFailedError is a non-zero completion of the engine process.
type EngineFailedError struct {
	ExitCode int
	Stderr   string
}

func (e *EngineFailedError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("engine exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("engine exited with code %d: %s", e.ExitCode, e.Stderr)
}

// ExecEngine shells out to the real engine binary. The configured command
// line is invoked with the input and output paths appended as its final two
// arguments, eg. `java -cp target/classes algorithm.Allocator allocate` turns
// into `java ... allocate <input> <output>`.
type ExecEngine struct {
	Command []string
}

func NewExecEngine(command []string) (*ExecEngine, error) {
	if len(command) == 0 {
		return nil, errors.New("engine command must not be empty")
	}
	return &ExecEngine{Command: command}, nil
}

func (e *ExecEngine) Allocate(ctx context.Context, inputPath, outputPath string) error {
	args := make([]string, 0, len(e.Command)+1)
	args = append(args, e.Command[1:]...)
	args = append(args, inputPath, outputPath)

	cmd := exec.CommandContext(ctx, e.Command[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		return ErrEngineTimeout
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return &EngineFailedError{
			ExitCode: exitErr.ExitCode(),
			Stderr:   truncate(stderr.String(), maxDiagnosticLen),
		}
	}
	return errors.Wrapf(err, "failed to invoke engine command '%s'", e.Command[0])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
