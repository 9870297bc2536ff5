package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Gzip returns an in-process compression stage. It serves two purposes:
// the operator can select it explicitly (tool name "builtin"), and it
// keeps backups working on hosts that carry no external compressor.
func Gzip() Stage {
	return gzipStage{}
}

type gzipStage struct{}

func (gzipStage) Name() string { return "gzip(builtin)" }

func (gzipStage) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gw, err := gzip.NewWriterLevel(out, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := io.Copy(gw, in); err != nil {
		return fmt.Errorf("gzip compress: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("gzip flush: %w", err)
	}
	return nil
}
