package domain

import "context"

// Storage is a remote destination a finished backup file is copied to.
type Storage interface {
	Upload(ctx context.Context, localPath string, remoteKey string) error
}

// Notifier delivers the end-of-run report.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}
