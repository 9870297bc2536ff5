package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestScheduler(t *testing.T) {
	Convey("Given a Scheduler", t, func() {
		Convey("New function", func() {
			scheduler := New(nil)

			Convey("It should create a new scheduler successfully", func() {
				So(scheduler, ShouldNotBeNil)
				So(scheduler.cron, ShouldNotBeNil)
			})
		})

		Convey("AddJob function", func() {
			Convey("When adding a job with a valid cron spec", func() {
				scheduler := New(nil)

				tempDir, err := os.MkdirTemp("", "scheduler_test")
				So(err, ShouldBeNil)
				defer os.RemoveAll(tempDir)

				logFile := filepath.Join(tempDir, "job.log")
				job := func(ctx context.Context) error {
					return os.WriteFile(logFile, []byte("executed"), 0644)
				}

				err = scheduler.AddJob("backup", "* * * * * *", job) // Every second

				Convey("It should add the job and run it", func() {
					So(err, ShouldBeNil)

					scheduler.Start()
					time.Sleep(2 * time.Second)
					scheduler.Stop()

					content, err := os.ReadFile(logFile)
					So(err, ShouldBeNil)
					So(string(content), ShouldEqual, "executed")
				})
			})

			Convey("When adding a job with an invalid cron spec", func() {
				scheduler := New(nil)
				job := func(ctx context.Context) error { return nil }
				err := scheduler.AddJob("backup", "invalid spec", job)

				Convey("It should return an error", func() {
					So(err, ShouldNotBeNil)
					So(err.Error(), ShouldContainSubstring, "expected exactly 6 fields")
				})
			})

			Convey("When a job fails", func() {
				var failures atomic.Int32
				scheduler := New(func(name string, err error) {
					if name == "backup" && err != nil {
						failures.Add(1)
					}
				})

				err := scheduler.AddJob("backup", "* * * * * *", func(ctx context.Context) error {
					return errors.New("dump failed")
				})
				So(err, ShouldBeNil)

				Convey("It should report the failure through onError", func() {
					scheduler.Start()
					time.Sleep(2 * time.Second)
					scheduler.Stop()

					So(failures.Load(), ShouldBeGreaterThan, 0)
				})
			})
		})

		Convey("Start and Stop methods", func() {
			scheduler := New(nil)

			Convey("When starting and stopping the scheduler", func() {
				tempDir, err := os.MkdirTemp("", "scheduler_test")
				So(err, ShouldBeNil)
				defer os.RemoveAll(tempDir)

				logFile := filepath.Join(tempDir, "job.log")
				job := func(ctx context.Context) error {
					return os.WriteFile(logFile, []byte("executed"), 0644)
				}

				err = scheduler.AddJob("backup", "* * * * * *", job)
				So(err, ShouldBeNil)

				Convey("It should start and stop without error", func() {
					So(func() { scheduler.Start() }, ShouldNotPanic)
					time.Sleep(2 * time.Second)

					_, err := os.Stat(logFile)
					So(err, ShouldBeNil)

					So(func() { scheduler.Stop() }, ShouldNotPanic)

					os.Remove(logFile)
					time.Sleep(2 * time.Second)
					_, err = os.Stat(logFile)
					So(os.IsNotExist(err), ShouldBeTrue)
				})
			})
		})
	})
}
