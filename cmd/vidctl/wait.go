package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/maauso/videobridge/internal/generator"
)

var errJobFailed = errors.New("generation failed")

// poller is the part of the bridge used while waiting on a job.
type poller interface {
	Poll(ctx context.Context, jobID string) (generator.Result, error)
}

// waitForVideo polls jobID every interval until it reaches a terminal status
// or ctx ends. Errors from a poll end the wait.
func waitForVideo(ctx context.Context, p poller, jobID string, interval time.Duration, logger *slog.Logger) (generator.Result, error) {
	if interval <= 0 {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := time.Now()
	for attempt := 1; ; attempt++ {
		result, err := p.Poll(ctx, jobID)
		if err != nil {
			return generator.Result{}, err
		}
		if result.Status.IsTerminal() {
			logger.Info("job finished",
				slog.String("job_id", jobID),
				slog.String("status", string(result.Status)),
				slog.Int("polls", attempt),
				slog.Duration("elapsed", time.Since(start)),
			)
			if result.Status == generator.StatusFailed {
				return result, fmt.Errorf("job %s: %w", jobID, errJobFailed)
			}
			return result, nil
		}

		logger.Debug("job still processing",
			slog.String("job_id", jobID),
			slog.Int("polls", attempt),
		)

		select {
		case <-ctx.Done():
			return generator.Result{}, fmt.Errorf("waiting for job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// resultOutput is the printed form of a poll result.
type resultOutput struct {
	Status      string `json:"status"`
	VideoURL    string `json:"videoUrl,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	File        string `json:"file,omitempty"`
	Bytes       int    `json:"bytes,omitempty"`
}

// report prints a poll result. Video bytes are written to out.
func report(w io.Writer, result generator.Result, out string) error {
	res := resultOutput{
		Status:      string(result.Status),
		VideoURL:    result.VideoURL,
		ContentType: result.ContentType,
	}
	if len(result.Video) > 0 {
		if out == "" {
			return errNoOutput
		}
		if err := os.WriteFile(out, result.Video, 0o644); err != nil {
			return fmt.Errorf("write video: %w", err)
		}
		res.File = out
		res.Bytes = len(result.Video)
	}
	return printJSON(w, res)
}
