package storage

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/semmidev/pgvault/internal/config"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// GDriveStorage mirrors finished backups into a Google Drive folder.
// Authentication uses service-account credentials: an unattended nightly
// job cannot run an interactive consent flow.
type GDriveStorage struct {
	service  *drive.Service
	folderID string
}

func NewGDrive(cfg *config.UploadTarget) (*GDriveStorage, error) {
	service, err := drive.NewService(context.Background(),
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(drive.DriveFileScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &GDriveStorage{
		service:  service,
		folderID: cfg.FolderID,
	}, nil
}

// Upload copies a local backup file into the folder. Drive has no real
// directories for our purposes, so the period/database key is flattened
// into the file name.
func (g *GDriveStorage) Upload(ctx context.Context, localPath string, remoteKey string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fileMetadata := &drive.File{
		Name:    strings.ReplaceAll(remoteKey, "/", "_"),
		Parents: []string{g.folderID},
	}

	_, err = g.service.Files.Create(fileMetadata).
		Media(file).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to upload to gdrive: %w", err)
	}

	return nil
}
