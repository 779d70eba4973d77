// Package main provides vidctl, an operator CLI that drives the video bridge
// directly against the configured provider, without the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/maauso/videobridge/internal/bootstrap"
	"github.com/maauso/videobridge/internal/bridge"
	"github.com/maauso/videobridge/internal/config"
)

// CLI flags
var (
	promptFlag   string
	imageFlag    string
	imageURLFlag string
	mimeTypeFlag string
	durationFlag int
	userFlag     string
	outFlag      string
	intervalFlag time.Duration
	maxWaitFlag  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "vidctl",
	Short: "Submit and poll image-to-video jobs",
	Long: `vidctl talks to the provider selected by VIDEO_PROVIDER using the same
configuration as the server (environment variables, optionally from .env).

Examples:
  vidctl submit --image ./cat.png --prompt "pan left"
  vidctl poll 7c3f9a --out cat.mp4
  vidctl wait 7c3f9a --interval 10s --max-wait 15m --out cat.mp4`,
	SilenceUsage: true,
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a generation request",
	Args:  cobra.NoArgs,
	RunE:  runSubmit,
}

var pollCmd = &cobra.Command{
	Use:   "poll <job-id>",
	Short: "Check a job once",
	Args:  cobra.ExactArgs(1),
	RunE:  runPoll,
}

var waitCmd = &cobra.Command{
	Use:   "wait <job-id>",
	Short: "Poll a job until the video is ready",
	Args:  cobra.ExactArgs(1),
	RunE:  runWait,
}

func init() {
	submitCmd.Flags().StringVarP(&promptFlag, "prompt", "p", "", "Motion prompt")
	submitCmd.Flags().StringVarP(&imageFlag, "image", "i", "", "Path to a local image file")
	submitCmd.Flags().StringVar(&imageURLFlag, "image-url", "", "Remote image URL (instead of --image)")
	submitCmd.Flags().StringVar(&mimeTypeFlag, "mime-type", "", "Image content type (sniffed when empty)")
	submitCmd.Flags().IntVarP(&durationFlag, "duration", "d", 0, "Clip length in seconds (0 = provider default)")
	submitCmd.Flags().StringVar(&userFlag, "user", "vidctl", "User id recorded in logs")

	for _, cmd := range []*cobra.Command{pollCmd, waitCmd} {
		cmd.Flags().StringVarP(&outFlag, "out", "o", "", "File to write video bytes to")
	}
	waitCmd.Flags().DurationVar(&intervalFlag, "interval", 5*time.Second, "Delay between polls")
	waitCmd.Flags().DurationVar(&maxWaitFlag, "max-wait", 10*time.Minute, "Give up after this long")

	rootCmd.AddCommand(submitCmd, pollCmd, waitCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newBridge loads configuration and builds the bridge. Logs go to stderr so
// stdout carries only command output.
func newBridge(ctx context.Context) (*bridge.Service, *slog.Logger, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := cfg.NewLoggerTo(os.Stderr)

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize dependencies: %w", err)
	}
	return deps.Bridge, logger, nil
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	svc, _, err := newBridge(ctx)
	if err != nil {
		return err
	}

	in := bridge.SubmitInput{
		Prompt:   promptFlag,
		ImageURL: imageURLFlag,
		MIMEType: mimeTypeFlag,
		Duration: durationFlag,
		UserID:   userFlag,
	}
	if imageFlag != "" {
		data, err := os.ReadFile(imageFlag)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		in.ImageData = data
	}

	out, err := svc.Submit(ctx, in)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), submitOutput{
		JobID:       out.JobID,
		Status:      out.Status,
		VideoURL:    out.VideoURL,
		ContentType: out.ContentType,
	})
}

func runPoll(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	svc, _, err := newBridge(ctx)
	if err != nil {
		return err
	}

	result, err := svc.Poll(ctx, args[0])
	if err != nil {
		return err
	}
	return report(cmd.OutOrStdout(), result, outFlag)
}

func runWait(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	svc, logger, err := newBridge(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, maxWaitFlag)
	defer cancel()

	result, err := waitForVideo(ctx, svc, args[0], intervalFlag, logger)
	if err != nil {
		return err
	}
	return report(cmd.OutOrStdout(), result, outFlag)
}

type submitOutput struct {
	JobID       string `json:"jobId,omitempty"`
	Status      string `json:"status,omitempty"`
	VideoURL    string `json:"videoUrl,omitempty"`
	ContentType string `json:"contentType,omitempty"`
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var errNoOutput = errors.New("provider returned video bytes; pass --out to save them")
