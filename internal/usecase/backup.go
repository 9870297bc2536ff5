package usecase

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/semmidev/pgvault/internal/adapter/pipeline"
	"github.com/semmidev/pgvault/internal/adapter/storage"
	"github.com/semmidev/pgvault/internal/domain"
)

// DumpSource builds the producing stage of a backup pipeline for one
// database (or the globals pseudo-entry).
type DumpSource interface {
	DumpStage(database string) pipeline.Stage
}

// UploadTarget is a named remote destination for finished backups.
type UploadTarget struct {
	Name    string
	Storage domain.Storage
}

// Backup performs the per-database work of a run: rotate the bucket,
// compose and execute the dump pipeline, verify the artifact, and mirror
// it to the remote targets.
type Backup struct {
	source  DumpSource
	tree    *storage.LocalTree
	rotator *Rotator
	targets []UploadTarget
	log     Logger

	compress    pipeline.Stage // nil disables the stage
	encrypt     pipeline.Stage // nil disables the stage
	extension   string
	compExt     string
	encSuffix   string
	fileMode    os.FileMode
	dumpTimeout time.Duration

	now func() time.Time
}

// BackupParams bundles the Backup collaborators and resolved settings.
type BackupParams struct {
	Source  DumpSource
	Tree    *storage.LocalTree
	Rotator *Rotator
	Targets []UploadTarget
	Logger  Logger

	Compress    pipeline.Stage
	Encrypt     pipeline.Stage
	Extension   string
	CompExt     string
	EncSuffix   string
	FileMode    os.FileMode
	DumpTimeout time.Duration

	Now func() time.Time
}

func NewBackup(p BackupParams) *Backup {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Backup{
		source:      p.Source,
		tree:        p.Tree,
		rotator:     p.Rotator,
		targets:     p.Targets,
		log:         p.Logger,
		compress:    p.Compress,
		encrypt:     p.Encrypt,
		extension:   p.Extension,
		compExt:     p.CompExt,
		encSuffix:   p.EncSuffix,
		fileMode:    p.FileMode,
		dumpTimeout: p.DumpTimeout,
		now:         now,
	}
}

// Execute backs up one database into the active period bucket. Rotation
// runs before the dump, so the file written here is never a deletion
// candidate in the same pass.
func (uc *Backup) Execute(ctx context.Context, period domain.Period, keep int, rawName string) error {
	database := domain.DecodeName(rawName)

	if _, err := uc.tree.EnsureDatabaseDir(period, database); err != nil {
		return fmt.Errorf("ensure backup directory: %w", err)
	}

	uc.rotator.Rotate(period, database, keep)

	filename := database + "_" + uc.now().Format(domain.TimestampLayout) + uc.extension + uc.compExt + uc.encSuffix
	destPath := uc.tree.FilePath(period, database, filename)

	stages := []pipeline.Stage{uc.source.DumpStage(database)}
	if uc.compress != nil {
		stages = append(stages, uc.compress)
	}
	if uc.encrypt != nil {
		stages = append(stages, uc.encrypt)
	}

	dumpCtx := ctx
	if uc.dumpTimeout > 0 {
		var cancel context.CancelFunc
		dumpCtx, cancel = context.WithTimeout(ctx, uc.dumpTimeout)
		defer cancel()
	}

	uc.log.Infof("[%s] dumping to %s", database, destPath)
	start := uc.now()
	if err := pipeline.Run(dumpCtx, stages, destPath, uc.fileMode); err != nil {
		return err
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return &domain.DumpError{Reason: domain.DumpMissing, Err: err}
	}
	uc.log.Infof("[%s] backup complete in %s, size %.2f MB",
		database, time.Since(start).Round(time.Second), float64(info.Size())/(1024*1024))

	uc.uploadToTargets(ctx, destPath, string(period)+"/"+database+"/"+filename)
	return nil
}

// uploadToTargets mirrors the artifact to every remote destination.
// Upload failures are warnings: the local backup of record exists.
func (uc *Backup) uploadToTargets(ctx context.Context, localPath, remoteKey string) {
	if len(uc.targets) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, target := range uc.targets {
		wg.Add(1)
		go func(t UploadTarget) {
			defer wg.Done()

			if err := t.Storage.Upload(ctx, localPath, remoteKey); err != nil {
				uc.log.Warnf("failed to upload %s to %s: %v", remoteKey, t.Name, err)
				return
			}
			uc.log.Infof("uploaded %s to %s", remoteKey, t.Name)
		}(target)
	}
	wg.Wait()
}
