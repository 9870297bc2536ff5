package notify

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Sendmail delivers the run report through a local sendmail-compatible
// mail transport, invoked as an external process like every other tool
// this system drives.
type Sendmail struct {
	path    string
	from    string
	to      string
	timeout time.Duration
}

func NewSendmail(path, from, to string, timeout time.Duration) *Sendmail {
	return &Sendmail{path: path, from: from, to: to, timeout: timeout}
}

func (s *Sendmail) Notify(ctx context.Context, subject, body string) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var msg strings.Builder
	if s.from != "" {
		fmt.Fprintf(&msg, "From: %s\n", s.from)
	}
	fmt.Fprintf(&msg, "To: %s\n", s.to)
	fmt.Fprintf(&msg, "Subject: %s\n\n", subject)
	msg.WriteString(body)

	cmd := exec.CommandContext(ctx, s.path, "-t")
	cmd.Stdin = strings.NewReader(msg.String())

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if out := strings.TrimSpace(stderr.String()); out != "" {
			return fmt.Errorf("sendmail failed: %w: %s", err, out)
		}
		return fmt.Errorf("sendmail failed: %w", err)
	}
	return nil
}
