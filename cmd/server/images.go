package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ErlanBelekov/marketplace/config"
	"github.com/ErlanBelekov/marketplace/internal/health"
	"github.com/ErlanBelekov/marketplace/internal/infrastructure/objstore"
)

// openImages returns the MinIO store when an endpoint is configured and an
// in-process store served under /images otherwise. The second result is nil
// for MinIO.
func openImages(ctx context.Context, cfg *config.Config, logger *slog.Logger, pingers map[string]health.Pinger) (objstore.ImageStore, *objstore.Memory, error) {
	if cfg.MinIOEndpoint == "" {
		mem := objstore.NewMemory(cfg.PublicBaseURL + "/images")
		return mem, mem, nil
	}

	m, err := objstore.NewMinIO(objstore.MinIOConfig{
		Endpoint:      cfg.MinIOEndpoint,
		AccessKey:     cfg.MinIOAccessKey,
		SecretKey:     cfg.MinIOSecretKey,
		Bucket:        cfg.MinIOBucket,
		UseSSL:        cfg.MinIOUseSSL,
		PublicBaseURL: cfg.MinIOPublicURL,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := m.EnsureBucket(ctx); err != nil {
		return nil, nil, fmt.Errorf("ensure bucket: %w", err)
	}
	pingers["minio"] = m
	return m, nil, nil
}
