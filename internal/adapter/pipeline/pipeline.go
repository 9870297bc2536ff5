package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/semmidev/pgvault/internal/domain"
)

// errAborted travels through a pipe when a stage fails, so that the
// neighbouring stages' induced pipe errors can be told apart from real
// failures.
var errAborted = errors.New("pipeline stage aborted")

// Stage is one step of the dump -> compress -> encrypt chain. A stage
// reads everything from in (nil for the producing stage), writes its
// result to out, and returns once the work is finished.
type Stage interface {
	Name() string
	Run(ctx context.Context, in io.Reader, out io.Writer) error
}

// Exec wraps an external process as a pipeline stage. name is used in
// error reporting, path/args form the command, env entries are appended
// to the inherited environment.
func Exec(name, path string, args, env []string) Stage {
	return &execStage{name: name, path: path, args: args, env: env}
}

type execStage struct {
	name string
	path string
	args []string
	env  []string
}

func (s *execStage) Name() string { return s.name }

func (s *execStage) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	cmd := exec.CommandContext(ctx, s.path, s.args...)
	cmd.Stdin = in
	cmd.Stdout = out

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if len(s.env) > 0 {
		cmd.Env = append(os.Environ(), s.env...)
	}

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", s.name, err, msg)
		}
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return nil
}

// Run executes the stage chain as one concurrent pipeline: every stage is
// a goroutine, neighbours are joined by unidirectional pipes, and the last
// stage streams into destPath. Memory use is bounded by pipe buffering,
// never by the dump size.
//
// Per-stage exit status is captured and the first failing stage is named
// in the returned error; the non-empty check on the destination file is
// kept as a secondary guard and decides the failure reason. A failed
// destination file is left in place for inspection, never silently
// accepted as a backup of record by callers.
func Run(ctx context.Context, stages []Stage, destPath string, mode os.FileMode) error {
	if len(stages) == 0 {
		return fmt.Errorf("pipeline has no stages")
	}

	dest, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return &domain.DumpError{Reason: domain.DumpMissing, Err: err}
	}

	errs := make([]error, len(stages))
	var wg sync.WaitGroup
	var in io.Reader
	for i, stage := range stages {
		var out io.Writer
		var next io.Reader
		if i == len(stages)-1 {
			out = dest
		} else {
			pr, pw := io.Pipe()
			out, next = pw, pr
		}

		wg.Add(1)
		go func(i int, stage Stage, in io.Reader, out io.Writer) {
			defer wg.Done()
			err := stage.Run(ctx, in, out)
			errs[i] = err
			// Closing both pipe ends unblocks the neighbours when this
			// stage bailed out mid-stream. A failure is propagated as
			// errAborted so it is never blamed on the neighbour.
			closeErr := error(nil)
			if err != nil {
				closeErr = errAborted
			}
			if pw, ok := out.(*io.PipeWriter); ok {
				pw.CloseWithError(closeErr)
			}
			if pr, ok := in.(*io.PipeReader); ok {
				pr.CloseWithError(closeErr)
			}
		}(i, stage, in, out)

		in = next
	}
	wg.Wait()

	if err := dest.Close(); err != nil {
		return &domain.DumpError{Reason: domain.DumpMissing, Err: err}
	}

	// Attribute the failure to the first stage that broke on its own;
	// stages that merely saw a neighbour's abort through the pipe are
	// victims, not culprits.
	var failedStage string
	var stageErr error
	for i, err := range errs {
		if err == nil || errors.Is(err, errAborted) || errors.Is(err, io.ErrClosedPipe) {
			continue
		}
		failedStage, stageErr = stages[i].Name(), err
		break
	}

	info, err := os.Stat(destPath)
	switch {
	case err != nil:
		return &domain.DumpError{Reason: domain.DumpMissing, Stage: failedStage, Err: stageErr}
	case info.Size() == 0:
		return &domain.DumpError{Reason: domain.DumpEmpty, Stage: failedStage, Err: stageErr}
	case stageErr != nil:
		return &domain.DumpError{Reason: domain.DumpStage, Stage: failedStage, Err: stageErr}
	}

	// O_CREATE honors the umask; make the configured mode stick exactly.
	if err := os.Chmod(destPath, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", destPath, err)
	}
	return nil
}

// CompressionExt maps a compressor tool name to the filename extension it
// conventionally produces. Unknown tools get a generic marker.
func CompressionExt(tool string) string {
	switch tool {
	case "gzip", "pigz", "builtin":
		return ".gz"
	case "bzip2":
		return ".bz2"
	case "xz":
		return ".xz"
	case "zstd":
		return ".zstd"
	default:
		return ".comp"
	}
}
