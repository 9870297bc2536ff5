package usecase

import (
	"regexp"
	"sort"
	"strings"

	"github.com/semmidev/pgvault/internal/adapter/storage"
	"github.com/semmidev/pgvault/internal/domain"
)

// Logger is the logging surface the use cases need.
type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// timestampPattern matches the instant embedded in every backup filename.
// The embedded timestamp, not the filesystem mtime, is the single source
// of truth for rotation order: copying files around or clock skew must
// never change which backups survive.
var timestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}_\d{2}h\d{2}m`)

// Rotator deletes old backups once a (database, period) bucket exceeds
// its retention count.
type Rotator struct {
	tree *storage.LocalTree
	log  Logger
}

func NewRotator(tree *storage.LocalTree, log Logger) *Rotator {
	return &Rotator{tree: tree, log: log}
}

// Rotate keeps the keep newest backups of one database in one period
// bucket and deletes the rest, returning the deleted paths. Files that do
// not carry the database prefix and a well-formed timestamp are ignored.
// Individual deletion failures are warnings; rotation continues.
func (r *Rotator) Rotate(period domain.Period, database string, keep int) []string {
	names, err := r.tree.List(period, database)
	if err != nil {
		r.log.Warnf("[%s] cannot list %s backups: %v", database, period, err)
		return nil
	}

	type backup struct {
		name  string
		stamp string
	}
	var backups []backup
	for _, name := range names {
		if !strings.HasPrefix(name, database+"_") {
			continue
		}
		stamp := timestampPattern.FindString(name)
		if stamp == "" {
			r.log.Debugf("[%s] ignoring file without timestamp: %s", database, name)
			continue
		}
		backups = append(backups, backup{name: name, stamp: stamp})
	}

	// Newest first. The timestamp layout makes string order equal time
	// order; the name breaks ties deterministically.
	sort.Slice(backups, func(i, j int) bool {
		if backups[i].stamp != backups[j].stamp {
			return backups[i].stamp > backups[j].stamp
		}
		return backups[i].name > backups[j].name
	})

	if len(backups) <= keep {
		return nil
	}

	var deleted []string
	for _, b := range backups[keep:] {
		if err := r.tree.Remove(period, database, b.name); err != nil {
			r.log.Warnf("[%s] failed to delete old %s backup %s: %v", database, period, b.name, err)
			continue
		}
		r.log.Infof("[%s] deleted old %s backup: %s", database, period, b.name)
		deleted = append(deleted, r.tree.FilePath(period, database, b.name))
	}
	return deleted
}
