// Package bootstrap provides dependency initialization for the video bridge.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/videobridge/internal/bridge"
	"github.com/maauso/videobridge/internal/config"
	"github.com/maauso/videobridge/internal/fal"
	"github.com/maauso/videobridge/internal/gemini"
	"github.com/maauso/videobridge/internal/generator"
	"github.com/maauso/videobridge/internal/stability"
	"github.com/maauso/videobridge/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Bridge *bridge.Service
}

// NewDependencies creates and initializes all dependencies for the application.
// A missing provider credential does not fail startup: the bridge is built
// unconfigured and reports a configuration error on every call.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	gen, configErr, err := NewGenerator(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if configErr != nil {
		logger.Warn("video provider not configured; requests will fail",
			slog.String("provider", cfg.Provider),
			slog.String("error", configErr.Error()),
		)
	}

	svc := bridge.NewService(cfg.Provider, gen, configErr,
		bridge.WithTimeout(cfg.UpstreamTimeout),
		bridge.WithLogger(logger),
	)

	return &Dependencies{Bridge: svc}, nil
}

// NewGenerator builds the adapter for the configured provider. When the
// provider credential is missing it returns a nil generator and the reason
// as configErr; err is reserved for failures that should stop startup.
func NewGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (gen generator.Generator, configErr error, err error) {
	key, credErr := cfg.ProviderCredential()
	if credErr != nil {
		return nil, credErr, nil
	}

	switch cfg.Provider {
	case config.ProviderStability:
		client, err := stability.NewClient(key,
			stability.WithBaseURL(cfg.StabilityBaseURL),
			stability.WithTimeout(cfg.UpstreamTimeout),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("create Stability client: %w", err)
		}
		defaults := stability.SubmitOptions{
			Seed:           cfg.StabilitySeed,
			CfgScale:       cfg.StabilityCfgScale,
			MotionBucketID: cfg.StabilityMotionBucketID,
		}
		return generator.NewStabilityAdapter(client, defaults), nil, nil

	case config.ProviderFAL:
		client, err := fal.NewClient(key,
			fal.WithQueueURL(cfg.FalQueueURL),
			fal.WithSyncURL(cfg.FalSyncURL),
			fal.WithSync(cfg.FalSync),
			fal.WithTimeout(cfg.UpstreamTimeout),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("create FAL client: %w", err)
		}
		stager, err := initStager(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("FAL provider configured",
			slog.String("model", cfg.FalModel),
			slog.Bool("sync", client.Sync()),
		)
		return generator.NewFALAdapter(client, cfg.FalModel, stager), nil, nil

	case config.ProviderGemini:
		opts := []gemini.ClientOption{gemini.WithTimeout(cfg.UpstreamTimeout)}
		if cfg.GeminiBaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.GeminiBaseURL))
		}
		client, err := gemini.NewClient(ctx, key, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create Gemini client: %w", err)
		}
		return generator.NewGeminiAdapter(client, cfg.GeminiModel), nil, nil
	}

	return nil, nil, errors.Join(config.ErrUnknownProvider, fmt.Errorf("provider %q", cfg.Provider))
}

// initStager creates the image stager used by providers that need image URLs.
func initStager(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Stager, error) {
	if cfg.S3Enabled() {
		stager, err := storage.NewS3Stager(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			PresignTTL:      cfg.S3PresignTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 stager: %w", err)
		}
		logger.Info("S3 image staging configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return stager, nil
	}

	logger.Info("S3 not configured; inline images are sent as data URIs")
	return storage.NewDataURIStager(), nil
}
