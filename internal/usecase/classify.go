package usecase

import (
	"time"

	"github.com/semmidev/pgvault/internal/config"
	"github.com/semmidev/pgvault/internal/domain"
)

// Classification is the outcome of deciding which retention bucket a run
// writes into.
type Classification struct {
	Period domain.Period
	Keep   int
}

// Classify resolves the active period for a run. Monthly beats weekly
// beats daily. A period whose configured day is 0 or whose keep count is
// not positive can never be selected; daily is the unconditional fallback
// and carries whatever keep count it has, possibly zero.
func Classify(now time.Time, ret config.RetentionConfig) Classification {
	if ret.MonthlyDay > 0 && now.Day() == ret.MonthlyDay && ret.KeepMonthly > 0 {
		return Classification{Period: domain.Monthly, Keep: ret.KeepMonthly}
	}
	if ret.WeeklyDay > 0 && isoWeekday(now) == ret.WeeklyDay && ret.KeepWeekly > 0 {
		return Classification{Period: domain.Weekly, Keep: ret.KeepWeekly}
	}
	return Classification{Period: domain.Daily, Keep: ret.KeepDaily}
}

// isoWeekday maps Go's Sunday-first weekday to ISO 8601 (1=Monday..7=Sunday).
func isoWeekday(t time.Time) int {
	if wd := int(t.Weekday()); wd != 0 {
		return wd
	}
	return 7
}
