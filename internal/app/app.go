package app

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/semmidev/pgvault/internal/adapter/notify"
	"github.com/semmidev/pgvault/internal/adapter/pipeline"
	"github.com/semmidev/pgvault/internal/adapter/postgres"
	"github.com/semmidev/pgvault/internal/adapter/storage"
	"github.com/semmidev/pgvault/internal/config"
	"github.com/semmidev/pgvault/internal/domain"
	"github.com/semmidev/pgvault/internal/infrastructure/logger"
	"github.com/semmidev/pgvault/internal/infrastructure/scheduler"
	"github.com/semmidev/pgvault/internal/usecase"
)

type App struct {
	config    *config.Config
	logger    *logger.Logger
	scheduler *scheduler.Scheduler
	run       *usecase.Run
}

func New(cfg *config.Config, debug bool) (*App, error) {
	// Initialize logger
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile, debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Infof("Starting %s", cfg.App.Name)

	mode, err := cfg.Backup.Mode()
	if err != nil {
		return nil, err
	}

	// Initialize the local backup tree
	tree, err := storage.NewLocalTree(cfg.Backup.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize backup tree: %w", err)
	}

	// Initialize the server client
	client := postgres.New(cfg.Connection, cfg.Selection.Exclude, cfg.Backup.CreateDatabase, cfg.Backup.CommandTimeout)

	// Probe the optional pipeline stages
	compress, compExt := resolveCompression(cfg.Compression, log)
	encrypt, encSuffix := resolveEncryption(cfg.Encryption, log)

	// Initialize upload targets and report transports
	uploadTargets := initializeUploadTargets(cfg, log)
	notifiers := initializeNotifiers(cfg, log)

	backupUC := usecase.NewBackup(usecase.BackupParams{
		Source:      client,
		Tree:        tree,
		Rotator:     usecase.NewRotator(tree, log),
		Targets:     uploadTargets,
		Logger:      log,
		Compress:    compress,
		Encrypt:     encrypt,
		Extension:   cfg.Backup.Ext(),
		CompExt:     compExt,
		EncSuffix:   encSuffix,
		FileMode:    mode,
		DumpTimeout: cfg.Backup.DumpTimeout,
	})

	runUC := usecase.NewRun(cfg, client, tree, backupUC, notifiers, log, debug, nil)

	sched := scheduler.New(func(name string, err error) {
		log.Errorf("Scheduled job %s failed: %v", name, err)
	})

	return &App{
		config:    cfg,
		logger:    log,
		scheduler: sched,
		run:       runUC,
	}, nil
}

// resolveCompression probes the configured compressor and returns its
// pipeline stage and filename extension. A missing tool disables the
// stage for the whole run; backups proceed uncompressed.
func resolveCompression(cfg config.CompressionConfig, log *logger.Logger) (pipeline.Stage, string) {
	if !cfg.Enabled {
		return nil, ""
	}

	if cfg.Tool == "" || cfg.Tool == "builtin" {
		return pipeline.Gzip(), ".gz"
	}

	path, err := exec.LookPath(cfg.Tool)
	if err != nil {
		log.Warnf("Compression disabled for this run: %v", &domain.ToolMissingError{Tool: cfg.Tool})
		return nil, ""
	}

	log.Infof("✓ Compression enabled (%s)", cfg.Tool)
	return pipeline.Exec(cfg.Tool, path, cfg.Args, nil), pipeline.CompressionExt(cfg.Tool)
}

// resolveEncryption probes the configured encryption tool and recipient
// certificate. The stage runs an S/MIME encrypt filter; a missing tool or
// unreadable certificate disables it for the whole run.
func resolveEncryption(cfg config.EncryptionConfig, log *logger.Logger) (pipeline.Stage, string) {
	if !cfg.Enabled {
		return nil, ""
	}

	path, err := exec.LookPath(cfg.Tool)
	if err != nil {
		log.Warnf("Encryption disabled for this run: %v", &domain.ToolMissingError{Tool: cfg.Tool})
		return nil, ""
	}
	if _, err := os.Stat(cfg.PublicKey); err != nil {
		log.Warnf("Encryption disabled for this run: recipient certificate: %v", err)
		return nil, ""
	}

	args := []string{"smime", "-encrypt", "-binary", "-" + cfg.Cipher, "-outform", "DER", cfg.PublicKey}

	log.Infof("✓ Encryption enabled (%s, %s)", cfg.Tool, cfg.Cipher)
	return pipeline.Exec(cfg.Tool, path, args, nil), cfg.Suffix
}

func initializeUploadTargets(cfg *config.Config, log *logger.Logger) []usecase.UploadTarget {
	var targets []usecase.UploadTarget

	for _, targetCfg := range cfg.EnabledUploadTargets() {
		var stor domain.Storage
		var err error

		switch targetCfg.Type {
		case "gdrive":
			stor, err = storage.NewGDrive(&targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize Google Drive: %v", err)
				continue
			}
			log.Infof("✓ Google Drive upload enabled")

		case "s3":
			stor, err = storage.NewS3(&targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize S3: %v", err)
				continue
			}
			log.Infof("✓ AWS S3 upload enabled (bucket: %s)", targetCfg.Bucket)

		default:
			log.Warnf("Unknown upload target type: %s", targetCfg.Type)
			continue
		}

		targets = append(targets, usecase.UploadTarget{
			Name:    targetCfg.Type,
			Storage: stor,
		})
	}

	return targets
}

func initializeNotifiers(cfg *config.Config, log *logger.Logger) []domain.Notifier {
	if !cfg.Report.Enabled {
		return nil
	}

	var notifiers []domain.Notifier

	if cfg.Report.MailTo != "" {
		notifiers = append(notifiers, notify.NewSendmail(
			cfg.Report.SendmailPath,
			cfg.Report.MailFrom,
			cfg.Report.MailTo,
			cfg.Backup.CommandTimeout,
		))
		log.Infof("✓ Mail reporting enabled (to: %s)", cfg.Report.MailTo)
	}

	if cfg.Report.TelegramBotToken != "" {
		tg, err := notify.NewTelegram(cfg.Report.TelegramBotToken, cfg.Report.TelegramChatID)
		if err != nil {
			log.Errorf("Failed to initialize Telegram: %v", err)
		} else {
			notifiers = append(notifiers, tg)
			log.Infof("✓ Telegram reporting enabled")
		}
	}

	return notifiers
}

// Run performs a single backup pass, or keeps running on the configured
// schedule. once forces a single pass even when a schedule is set.
func (a *App) Run(ctx context.Context, once bool) error {
	if a.config.Schedule == "" || once {
		return a.run.Execute(ctx)
	}

	if err := a.scheduler.AddJob("backup", a.config.Schedule, a.run.Execute); err != nil {
		return fmt.Errorf("failed to schedule backups: %w", err)
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started: %s", a.config.Schedule)

	<-ctx.Done()
	return nil
}

// ErrorCount reports how many errors this process has logged over its
// whole lifetime. The exit code is derived from it: any logged error
// makes the run a failure even though the pass itself kept going.
func (a *App) ErrorCount() int {
	return a.logger.Recorder().TotalErrorCount()
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down...")
	a.scheduler.Stop()
	a.logger.Close()
}
