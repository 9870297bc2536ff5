package notify

import (
	"fmt"
	"strings"
)

// Report is the end-of-run summary delivered to operators when a run
// recorded warnings or errors: the problem lines first, then the full
// run log for context.
type Report struct {
	Subject string
	Body    string
}

func Compose(appName, host string, errorCount int, problems, log []string) Report {
	var subject string
	if errorCount > 0 {
		subject = fmt.Sprintf("%s: backup run on %s finished with %d error(s)", appName, host, errorCount)
	} else {
		subject = fmt.Sprintf("%s: backup run on %s finished with warnings", appName, host)
	}

	var b strings.Builder
	b.WriteString("Problems:\n\n")
	for _, line := range problems {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("\nFull run log:\n\n")
	for _, line := range log {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	return Report{Subject: subject, Body: b.String()}
}
