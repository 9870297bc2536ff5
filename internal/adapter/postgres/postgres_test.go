package postgres

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/pgvault/internal/config"
	"github.com/semmidev/pgvault/internal/domain"
)

func TestParseList(t *testing.T) {
	Convey("Given unaligned tuples-only psql --list output", t, func() {
		Convey("When parsing a normal listing", func() {
			out := []byte("app|postgres|UTF8|libc|en_US.UTF-8|en_US.UTF-8|||\n" +
				"billing|postgres|UTF8|libc|en_US.UTF-8|en_US.UTF-8|||\n" +
				"template1|postgres|UTF8|libc|en_US.UTF-8|en_US.UTF-8|||=c/postgres\n")

			names := parseList(out)

			Convey("The first field of every row should be taken as the name", func() {
				So(names, ShouldResemble, []string{"app", "billing", "template1"})
			})
		})

		Convey("When access privileges spill onto continuation lines", func() {
			out := []byte("app|postgres|UTF8|libc|C|C|||=Tc/postgres\n" +
				"postgres=CTc/postgres\n" +
				"billing|postgres|UTF8|libc|C|C|||\n")

			names := parseList(out)

			Convey("Lines without a field separator should be skipped", func() {
				So(names, ShouldResemble, []string{"app", "billing"})
			})
		})

		Convey("When the output is empty or malformed", func() {
			So(parseList(nil), ShouldBeEmpty)
			So(parseList([]byte("\n\n")), ShouldBeEmpty)
			So(parseList([]byte("|orphan|row\n")), ShouldBeEmpty)
		})
	})
}

func TestFilter(t *testing.T) {
	Convey("Given a client with an exclusion list", t, func() {
		client := New(config.ConnectionConfig{}, []string{"billing", "my%database"}, false, time.Second)

		Convey("When filtering a discovered listing", func() {
			names := client.filter([]string{"zoo", "app", "billing", "template0", "my database", "app"})

			Convey("Exclusions, template0 and duplicates should be dropped", func() {
				So(names, ShouldResemble, []string{"app", "zoo", domain.GlobalsName})
			})
		})

		Convey("When the globals pseudo-entry is excluded by the operator", func() {
			strict := New(config.ConnectionConfig{}, []string{domain.GlobalsName}, false, time.Second)

			names := strict.filter([]string{"app"})

			Convey("It should still be appended after the set difference", func() {
				So(names, ShouldResemble, []string{"app", domain.GlobalsName})
			})
		})

		Convey("When filtering leaves nothing", func() {
			names := client.filter([]string{"billing", "template0"})

			Convey("The globals pseudo-entry alone should remain", func() {
				So(names, ShouldResemble, []string{domain.GlobalsName})
			})
		})
	})
}

func TestDumpCommand(t *testing.T) {
	Convey("Given a client against the local server", t, func() {
		client := New(config.ConnectionConfig{Host: "localhost"}, nil, false, time.Second)

		Convey("When dumping a regular database", func() {
			tool, args := client.DumpCommand("app")

			Convey("pg_dump should be invoked without connection flags", func() {
				So(tool, ShouldEqual, "pg_dump")
				So(args, ShouldResemble, []string{"app"})
			})
		})

		Convey("When dumping the globals pseudo-entry", func() {
			tool, args := client.DumpCommand(domain.GlobalsName)

			Convey("pg_dumpall should dump globals only", func() {
				So(tool, ShouldEqual, "pg_dumpall")
				So(args, ShouldResemble, []string{"--globals-only"})
			})
		})

		Convey("When CREATE DATABASE statements are requested", func() {
			withCreate := New(config.ConnectionConfig{}, nil, true, time.Second)

			tool, args := withCreate.DumpCommand("app")

			Convey("pg_dump should receive --create", func() {
				So(tool, ShouldEqual, "pg_dump")
				So(args, ShouldResemble, []string{"--create", "app"})
			})
		})
	})

	Convey("Given a client against a remote server", t, func() {
		client := New(config.ConnectionConfig{
			Host:     "db.internal",
			Port:     5433,
			Username: "backup",
			Password: "secret",
		}, nil, false, time.Second)

		Convey("When dumping a database", func() {
			tool, args := client.DumpCommand("app")

			Convey("Connection flags should precede the database name", func() {
				So(tool, ShouldEqual, "pg_dump")
				So(args, ShouldResemble, []string{
					"--host=db.internal",
					"--port=5433",
					"--username=backup",
					"app",
				})
			})
		})

		Convey("The password should travel through the environment", func() {
			So(client.Env(), ShouldResemble, []string{"PGPASSWORD=secret"})
		})
	})

	Convey("Given a client without a password", t, func() {
		client := New(config.ConnectionConfig{}, nil, false, time.Second)

		Convey("No extra environment should be injected", func() {
			So(client.Env(), ShouldBeNil)
		})
	})
}
