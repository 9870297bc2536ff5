package usecase

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/pgvault/internal/adapter/storage"
	"github.com/semmidev/pgvault/internal/domain"
	"github.com/semmidev/pgvault/internal/infrastructure/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error", "", false)
	if err != nil {
		t.Fatal(err)
	}
	return log
}

func seedBackups(t *testing.T, tree *storage.LocalTree, period domain.Period, database string, count int) []string {
	t.Helper()
	dir, err := tree.EnsureDatabaseDir(period, database)
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 8, 20, 2, 0, 0, 0, time.UTC)
	names := make([]string, 0, count)
	for i := 0; i < count; i++ {
		name := fmt.Sprintf("%s_%s.sql.gz", database, base.AddDate(0, 0, i).Format(domain.TimestampLayout))
		if err := os.WriteFile(filepath.Join(dir, name), []byte("backup"), 0600); err != nil {
			t.Fatal(err)
		}
		names = append(names, name)
	}
	return names
}

func TestRotate(t *testing.T) {
	Convey("Given a Rotator over a backup tree", t, func() {
		tempDir, err := os.MkdirTemp("", "rotate_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)

		tree, err := storage.NewLocalTree(tempDir)
		So(err, ShouldBeNil)

		rotator := NewRotator(tree, testLogger(t))

		Convey("When 5 backups exist and 2 are kept", func() {
			names := seedBackups(t, tree, domain.Daily, "app", 5)

			deleted := rotator.Rotate(domain.Daily, "app", 2)

			Convey("It should delete the 3 oldest", func() {
				So(len(deleted), ShouldEqual, 3)

				remaining, err := tree.List(domain.Daily, "app")
				So(err, ShouldBeNil)
				So(len(remaining), ShouldEqual, 2)
				So(remaining, ShouldContain, names[3])
				So(remaining, ShouldContain, names[4])
			})

			Convey("It should be idempotent", func() {
				again := rotator.Rotate(domain.Daily, "app", 2)
				So(again, ShouldBeEmpty)

				remaining, err := tree.List(domain.Daily, "app")
				So(err, ShouldBeNil)
				So(len(remaining), ShouldEqual, 2)
			})
		})

		Convey("When fewer backups exist than the keep count", func() {
			seedBackups(t, tree, domain.Weekly, "app", 3)

			deleted := rotator.Rotate(domain.Weekly, "app", 5)

			Convey("Nothing should be deleted", func() {
				So(deleted, ShouldBeEmpty)

				remaining, err := tree.List(domain.Weekly, "app")
				So(err, ShouldBeNil)
				So(len(remaining), ShouldEqual, 3)
			})
		})

		Convey("When foreign files share the directory", func() {
			seedBackups(t, tree, domain.Daily, "app", 3)
			dir := tree.DatabaseDir(domain.Daily, "app")
			os.WriteFile(filepath.Join(dir, "other_2026-08-01_02h00m.sql.gz"), []byte("x"), 0600)
			os.WriteFile(filepath.Join(dir, "app_readme.txt"), []byte("x"), 0600)

			deleted := rotator.Rotate(domain.Daily, "app", 1)

			Convey("Only this database's timestamped backups should rotate", func() {
				So(len(deleted), ShouldEqual, 2)

				remaining, err := tree.List(domain.Daily, "app")
				So(err, ShouldBeNil)
				So(remaining, ShouldContain, "other_2026-08-01_02h00m.sql.gz")
				So(remaining, ShouldContain, "app_readme.txt")
			})
		})

		Convey("When the bucket is empty", func() {
			deleted := rotator.Rotate(domain.Monthly, "app", 3)

			Convey("It should do nothing", func() {
				So(deleted, ShouldBeEmpty)
			})
		})

		Convey("When names arrive out of directory order", func() {
			dir, err := tree.EnsureDatabaseDir(domain.Daily, "app")
			So(err, ShouldBeNil)
			// Written newest first; rotation must order by the embedded
			// timestamp, not creation time.
			stamps := []string{
				"2026-08-26_02h00m",
				"2026-08-24_02h00m",
				"2026-08-25_02h00m",
			}
			for _, stamp := range stamps {
				err := os.WriteFile(filepath.Join(dir, "app_"+stamp+".sql.gz"), []byte("x"), 0600)
				So(err, ShouldBeNil)
			}

			rotator.Rotate(domain.Daily, "app", 2)

			Convey("The two newest timestamps should survive", func() {
				remaining, err := tree.List(domain.Daily, "app")
				So(err, ShouldBeNil)
				So(len(remaining), ShouldEqual, 2)
				So(remaining, ShouldContain, "app_2026-08-26_02h00m.sql.gz")
				So(remaining, ShouldContain, "app_2026-08-25_02h00m.sql.gz")
			})
		})
	})
}
