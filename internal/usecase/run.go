package usecase

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/semmidev/pgvault/internal/adapter/notify"
	"github.com/semmidev/pgvault/internal/adapter/storage"
	"github.com/semmidev/pgvault/internal/config"
	"github.com/semmidev/pgvault/internal/domain"
	"github.com/semmidev/pgvault/internal/infrastructure/logger"
)

// Enumerator discovers the databases of the target server.
type Enumerator interface {
	Ping(ctx context.Context) error
	ListDatabases(ctx context.Context) ([]string, error)
}

// Run drives one complete backup pass: classify the day, prepare the
// tree, enumerate databases, and rotate + dump each one in sequence. A
// single database's failure never aborts the pass.
//
// Two runs against the same backup root must not overlap; serializing
// invocations is the operator's job (the scheduler never overlaps its own
// jobs, but external cron entries must use a run lock).
type Run struct {
	cfg        *config.Config
	enumerator Enumerator
	tree       *storage.LocalTree
	backup     *Backup
	notifiers  []domain.Notifier
	log        *logger.Logger
	debug      bool
	now        func() time.Time
}

func NewRun(
	cfg *config.Config,
	enumerator Enumerator,
	tree *storage.LocalTree,
	backup *Backup,
	notifiers []domain.Notifier,
	log *logger.Logger,
	debug bool,
	now func() time.Time,
) *Run {
	if now == nil {
		now = time.Now
	}
	return &Run{
		cfg:        cfg,
		enumerator: enumerator,
		tree:       tree,
		backup:     backup,
		notifiers:  notifiers,
		log:        log,
		debug:      debug,
		now:        now,
	}
}

func (uc *Run) Execute(ctx context.Context) error {
	defer uc.deliverReport(ctx)

	cls := Classify(uc.now(), uc.cfg.Retention)
	uc.log.Infof("run classified as %s backup, keeping %d per database", cls.Period, cls.Keep)

	if cls.Keep <= 0 {
		uc.log.Warnf("%s retention is disabled (keep=%d); nothing to do", cls.Period, cls.Keep)
		return nil
	}

	if err := uc.tree.EnsurePeriodDirs(); err != nil {
		uc.log.Errorf("prepare backup tree: %v", err)
		return err
	}

	uc.runHook(ctx, "pre-backup", uc.cfg.Hooks.PreCommand)

	databases, err := uc.resolveDatabases(ctx)
	if err != nil {
		uc.log.Errorf("%v", err)
		uc.runHook(ctx, "post-backup", uc.cfg.Hooks.PostCommand)
		return err
	}
	uc.log.Infof("backing up %d database(s): %s", len(databases), strings.Join(databases, ", "))

	var failed []string
	for _, raw := range databases {
		if err := ctx.Err(); err != nil {
			uc.log.Errorf("run canceled: %v", err)
			break
		}
		if err := uc.backup.Execute(ctx, cls.Period, cls.Keep, raw); err != nil {
			uc.log.Errorf("[%s] backup failed: %v", domain.DecodeName(raw), err)
			failed = append(failed, domain.DecodeName(raw))
		}
	}

	uc.runHook(ctx, "post-backup", uc.cfg.Hooks.PostCommand)

	if len(failed) > 0 {
		uc.log.Warnf("run finished with %d failed database(s): %s", len(failed), strings.Join(failed, ", "))
	} else {
		uc.log.Infof("run finished: all %d database(s) backed up", len(databases))
	}
	return nil
}

// resolveDatabases returns the configured fixed list, or falls back to
// discovery against the server.
func (uc *Run) resolveDatabases(ctx context.Context) ([]string, error) {
	if explicit := uc.cfg.Selection.Explicit(); len(explicit) > 0 {
		uc.log.Debugf("using explicit database list, discovery bypassed")
		return explicit, nil
	}

	if err := uc.enumerator.Ping(ctx); err != nil {
		uc.log.Warnf("server ping failed: %v", err)
	}
	return uc.enumerator.ListDatabases(ctx)
}

// runHook executes an operator-supplied shell command. Hook failures are
// warnings: they must not block backups.
func (uc *Run) runHook(ctx context.Context, name, command string) {
	if command == "" {
		return
	}
	if timeout := uc.cfg.Backup.CommandTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	uc.log.Infof("running %s hook: %s", name, command)
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	err := cmd.Run()
	if out := strings.TrimSpace(output.String()); out != "" {
		uc.log.Debugf("%s hook output: %s", name, out)
	}
	if err != nil {
		uc.log.Warnf("%s hook failed: %v", name, err)
	}
}

// deliverReport sends the composed run report when anything went wrong.
// Debug runs echo everything to the console already and send nothing.
// The recorder window is reset afterwards either way, so in daemon mode a
// tick only ever reports its own problems.
func (uc *Run) deliverReport(ctx context.Context) {
	rec := uc.log.Recorder()
	defer rec.Reset()

	if uc.debug || len(uc.notifiers) == 0 {
		return
	}
	if rec.ProblemCount() == 0 {
		return
	}

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	report := notify.Compose(uc.cfg.App.Name, host, rec.ErrorCount(), rec.Problems(), rec.Lines())

	for _, notifier := range uc.notifiers {
		if err := notifier.Notify(ctx, report.Subject, report.Body); err != nil {
			uc.log.Warnf("report delivery failed: %v", err)
		}
	}
}
