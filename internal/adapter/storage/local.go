package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/semmidev/pgvault/internal/domain"
)

// LocalTree is the period-bucketed backup directory layout:
// <root>/{daily,weekly,monthly}/<database>/<file>.
type LocalTree struct {
	root string
}

func NewLocalTree(root string) (*LocalTree, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup root: %w", err)
	}
	return &LocalTree{root: root}, nil
}

func (t *LocalTree) Root() string {
	return t.root
}

// EnsurePeriodDirs creates the three top-level period directories.
// Idempotent.
func (t *LocalTree) EnsurePeriodDirs() error {
	for _, period := range domain.Periods() {
		if err := os.MkdirAll(filepath.Join(t.root, string(period)), 0755); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", period, err)
		}
	}
	return nil
}

// EnsureDatabaseDir creates the per-database directory for one period and
// returns its path. Idempotent.
func (t *LocalTree) EnsureDatabaseDir(period domain.Period, database string) (string, error) {
	dir := t.DatabaseDir(period, database)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return dir, nil
}

func (t *LocalTree) DatabaseDir(period domain.Period, database string) string {
	return filepath.Join(t.root, string(period), database)
}

func (t *LocalTree) FilePath(period domain.Period, database, name string) string {
	return filepath.Join(t.DatabaseDir(period, database), name)
}

// List returns the file names in one database's period directory. A
// directory that does not exist yet lists as empty, not as an error.
func (t *LocalTree) List(period domain.Period, database string) ([]string, error) {
	entries, err := os.ReadDir(t.DatabaseDir(period, database))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	return files, nil
}

func (t *LocalTree) Remove(period domain.Period, database, name string) error {
	if err := os.Remove(t.FilePath(period, database, name)); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
