package storage

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/pgvault/internal/domain"
)

func TestLocalTree(t *testing.T) {
	Convey("Given a LocalTree", t, func() {
		tempDir, err := os.MkdirTemp("", "local_tree_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)

		Convey("NewLocalTree", func() {
			Convey("When creating with a non-existent root", func() {
				root := filepath.Join(tempDir, "nested", "backups")
				tree, err := NewLocalTree(root)

				Convey("It should create the root and succeed", func() {
					So(err, ShouldBeNil)
					So(tree, ShouldNotBeNil)
					So(tree.Root(), ShouldEqual, root)

					info, err := os.Stat(root)
					So(err, ShouldBeNil)
					So(info.IsDir(), ShouldBeTrue)
				})
			})
		})

		Convey("EnsurePeriodDirs", func() {
			tree, _ := NewLocalTree(tempDir)

			Convey("When called", func() {
				err := tree.EnsurePeriodDirs()

				Convey("It should create daily, weekly and monthly", func() {
					So(err, ShouldBeNil)
					for _, period := range domain.Periods() {
						info, err := os.Stat(filepath.Join(tempDir, string(period)))
						So(err, ShouldBeNil)
						So(info.IsDir(), ShouldBeTrue)
					}
				})

				Convey("It should be idempotent", func() {
					So(tree.EnsurePeriodDirs(), ShouldBeNil)
					So(tree.EnsurePeriodDirs(), ShouldBeNil)
				})
			})
		})

		Convey("EnsureDatabaseDir", func() {
			tree, _ := NewLocalTree(tempDir)

			Convey("When ensuring a database directory", func() {
				dir, err := tree.EnsureDatabaseDir(domain.Daily, "app")

				Convey("It should create the per-database directory", func() {
					So(err, ShouldBeNil)
					So(dir, ShouldEqual, filepath.Join(tempDir, "daily", "app"))

					info, err := os.Stat(dir)
					So(err, ShouldBeNil)
					So(info.IsDir(), ShouldBeTrue)
				})
			})

			Convey("When the database name contains a space", func() {
				dir, err := tree.EnsureDatabaseDir(domain.Weekly, "my database")

				Convey("It should still create the directory", func() {
					So(err, ShouldBeNil)
					_, err := os.Stat(dir)
					So(err, ShouldBeNil)
				})
			})
		})

		Convey("List", func() {
			tree, _ := NewLocalTree(tempDir)

			Convey("When the directory has files and subdirectories", func() {
				dir, _ := tree.EnsureDatabaseDir(domain.Daily, "app")
				os.WriteFile(filepath.Join(dir, "app_2026-08-25_02h00m.sql.gz"), []byte("x"), 0600)
				os.WriteFile(filepath.Join(dir, "app_2026-08-26_02h00m.sql.gz"), []byte("x"), 0600)
				os.Mkdir(filepath.Join(dir, "subdir"), 0755)

				files, err := tree.List(domain.Daily, "app")

				Convey("It should list only files", func() {
					So(err, ShouldBeNil)
					So(len(files), ShouldEqual, 2)
					So(files, ShouldContain, "app_2026-08-25_02h00m.sql.gz")
					So(files, ShouldContain, "app_2026-08-26_02h00m.sql.gz")
					So(files, ShouldNotContain, "subdir")
				})
			})

			Convey("When the directory does not exist yet", func() {
				files, err := tree.List(domain.Monthly, "never-dumped")

				Convey("It should return an empty listing without error", func() {
					So(err, ShouldBeNil)
					So(files, ShouldBeEmpty)
				})
			})
		})

		Convey("Remove", func() {
			tree, _ := NewLocalTree(tempDir)
			dir, _ := tree.EnsureDatabaseDir(domain.Daily, "app")

			Convey("When deleting an existing file", func() {
				name := "app_2026-08-25_02h00m.sql.gz"
				os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600)

				err := tree.Remove(domain.Daily, "app", name)

				Convey("The file should be gone", func() {
					So(err, ShouldBeNil)
					_, statErr := os.Stat(filepath.Join(dir, name))
					So(os.IsNotExist(statErr), ShouldBeTrue)
				})
			})

			Convey("When deleting a missing file", func() {
				err := tree.Remove(domain.Daily, "app", "nope.sql")

				Convey("It should return an error", func() {
					So(err, ShouldNotBeNil)
					So(err.Error(), ShouldContainSubstring, "failed to delete file")
				})
			})
		})
	})
}
