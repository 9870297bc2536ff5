package logger

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// Entry is one recorded log line.
type Entry struct {
	Time    time.Time
	Level   zapcore.Level
	Message string
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %s %s", e.Time.Format("2006-01-02T15:04:05"), e.Level.CapitalString(), e.Message)
}

// Recorder keeps every entry written through the logger at info level and
// above. The entries form a window covering the current run: the run
// report is composed from the window, and Reset starts a fresh one so a
// long-lived daemon never carries one tick's problems into the next. The
// lifetime error total survives resets and decides the process exit code.
type Recorder struct {
	mu          sync.Mutex
	entries     []Entry
	totalErrors int
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) core(enab zapcore.LevelEnabler) zapcore.Core {
	return &recorderCore{LevelEnabler: enab, recorder: r}
}

func (r *Recorder) record(ent zapcore.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Time: ent.Time, Level: ent.Level, Message: ent.Message})
	if ent.Level >= zapcore.ErrorLevel {
		r.totalErrors++
	}
}

func (r *Recorder) count(min zapcore.Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.Level >= min {
			n++
		}
	}
	return n
}

// ErrorCount returns the number of error-level entries in the current window.
func (r *Recorder) ErrorCount() int {
	return r.count(zapcore.ErrorLevel)
}

// TotalErrorCount returns every error recorded over the process lifetime,
// across Reset calls.
func (r *Recorder) TotalErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalErrors
}

// Reset discards the current window so the next run starts clean.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

// ProblemCount returns the number of warn-or-worse entries.
func (r *Recorder) ProblemCount() int {
	return r.count(zapcore.WarnLevel)
}

// Problems returns the formatted warn-or-worse lines, oldest first.
func (r *Recorder) Problems() []string {
	return r.lines(zapcore.WarnLevel)
}

// Lines returns every recorded line, oldest first.
func (r *Recorder) Lines() []string {
	return r.lines(zapcore.InfoLevel)
}

func (r *Recorder) lines(min zapcore.Level) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.entries {
		if e.Level >= min {
			out = append(out, e.String())
		}
	}
	return out
}

// recorderCore is a zapcore.Core that only captures entries; rendering is
// left to the console and file cores in the tee.
type recorderCore struct {
	zapcore.LevelEnabler
	recorder *Recorder
}

func (c *recorderCore) With([]zapcore.Field) zapcore.Core { return c }

func (c *recorderCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *recorderCore) Write(ent zapcore.Entry, _ []zapcore.Field) error {
	c.recorder.record(ent)
	return nil
}

func (c *recorderCore) Sync() error { return nil }
