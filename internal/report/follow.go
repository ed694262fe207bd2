// internal/report/follow.go
package report

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hpcloud/tail"
	"go.uber.org/zap"
)

// FollowConfig controls Follow.
type FollowConfig struct {
	// FromStart replays the records already in the file before waiting for
	// new ones.
	FromStart bool
	// Poll watches the file by polling instead of inotify.
	Poll bool
}

// Follow tails a run log and calls fn for every record appended to it until
// ctx ends or fn returns an error. Malformed lines are logged and skipped.
func Follow(ctx context.Context, path string, cfg FollowConfig, logger *zap.Logger, fn func(Record) error) error {
	log := logger.Named("runlog-follow")

	whence := io.SeekEnd
	if cfg.FromStart {
		whence = io.SeekStart
	}
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: true,
		Poll:      cfg.Poll,
		Location:  &tail.SeekInfo{Offset: 0, Whence: whence},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return fmt.Errorf("failed to tail run log: %w", err)
	}
	defer func() {
		_ = t.Stop()
		t.Cleanup()
	}()

	log.Debug("Following run log.", zap.String("path", path))
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				log.Warn("Error reading from run log", zap.Error(line.Err))
				continue
			}
			text := strings.TrimSpace(line.Text)
			if text == "" {
				continue
			}
			var rec Record
			if err := json.Unmarshal([]byte(text), &rec); err != nil {
				log.Warn("Skipping malformed run log line", zap.Error(err))
				continue
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
	}
}

// Summary renders a record as one line for history listings.
func Summary(rec Record) string {
	verdict := rec.State
	switch {
	case rec.Succeeded:
		verdict += " via " + rec.Heuristic
	case rec.Code != "":
		verdict += " [" + rec.Code + "]"
	}
	return fmt.Sprintf("%s  %-8s  %s  %s",
		rec.StartedAt.Local().Format(time.DateTime),
		(time.Duration(rec.DurationMS) * time.Millisecond).Round(time.Millisecond*100).String(),
		verdict,
		urlOrUnknown(rec.FinalURL))
}
