package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"coartistry-backend/internal/canvas"
	"coartistry-backend/internal/drawing"
)

func newWatchCmd(o *options) *cobra.Command {
	var (
		out      string
		interval time.Duration
		once     bool
		width    int
		height   int
	)
	cmd := &cobra.Command{
		Use:   "watch <roomId>",
		Short: "Mirror a room's canvas into a PNG file",
		Long: `watch joins a room as a silent participant and keeps a PNG copy of the
shared canvas, rewriting it at most once per --interval while drawing continues.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rc, err := openRoom(ctx, o, args[0], width, height)
			if err != nil {
				return err
			}
			defer rc.Close()

			if err := rc.writePNG(out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d operations)\n", out, len(rc.client.Replica().Log()))
			if once {
				return nil
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			dirty := false
			for {
				select {
				case <-rc.changed:
					dirty = true
				case <-ticker.C:
					if !dirty {
						continue
					}
					dirty = false
					if err := rc.writePNG(out); err != nil {
						return err
					}
					rc.logger.Debug("canvas written", zap.String("path", out))
				case err := <-rc.done:
					// 연결이 끊기면 마지막 상태를 남기고 종료
					rc.done <- err
					if werr := rc.writePNG(out); werr != nil {
						return werr
					}
					return err
				case <-ctx.Done():
					return rc.writePNG(out)
				}
			}
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&out, "out", "o", "canvas.png", "PNG output path")
	fl.DurationVar(&interval, "interval", time.Second, "minimum time between rewrites")
	fl.BoolVar(&once, "once", false, "write the caught-up canvas once and exit")
	fl.IntVar(&width, "width", canvas.DefaultWidth, "canvas width in pixels")
	fl.IntVar(&height, "height", canvas.DefaultHeight, "canvas height in pixels")
	return cmd
}

// writePNG encodes under the replica lock and swaps the file in place.
func (rc *roomConn) writePNG(path string) error {
	var buf bytes.Buffer
	var encErr error
	rc.client.Replica().View(func(drawing.Surface) {
		encErr = rc.surface.EncodePNG(&buf)
	})
	if encErr != nil {
		return fmt.Errorf("encode png: %w", encErr)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".canvas-*.png")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
