package domain

import "fmt"

// DiscoveryError wraps a failed database enumeration. It is fatal to the
// run: with no database set there is nothing to back up.
type DiscoveryError struct {
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("database discovery failed: %v", e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// DumpFailure classifies why a dump pipeline produced no usable artifact.
type DumpFailure string

const (
	// DumpMissing: the destination file does not exist after the pipeline ran.
	DumpMissing DumpFailure = "missing"
	// DumpEmpty: the destination file exists but holds zero bytes.
	DumpEmpty DumpFailure = "empty"
	// DumpStage: a pipeline stage exited non-zero even though the file has content.
	DumpStage DumpFailure = "stage failed"
)

// DumpError reports a failed dump pipeline. Stage names the first failing
// stage when one was observed; the file check is the secondary guard and
// decides the Reason.
type DumpError struct {
	Reason DumpFailure
	Stage  string
	Err    error
}

func (e *DumpError) Error() string {
	switch {
	case e.Stage != "" && e.Err != nil:
		return fmt.Sprintf("dump failed (%s) at stage %s: %v", e.Reason, e.Stage, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("dump failed (%s): %v", e.Reason, e.Err)
	case e.Stage != "":
		return fmt.Sprintf("dump failed (%s) at stage %s", e.Reason, e.Stage)
	}
	return fmt.Sprintf("dump failed (%s)", e.Reason)
}

func (e *DumpError) Unwrap() error { return e.Err }

// ToolMissingError marks a configured external tool that is not on PATH.
// The affected pipeline stage is disabled for the whole run instead of
// failing every database.
type ToolMissingError struct {
	Tool string
}

func (e *ToolMissingError) Error() string {
	return fmt.Sprintf("tool %q not found in PATH", e.Tool)
}
