package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"karolbroda.com/encore/internal/cache"
	"karolbroda.com/encore/internal/catalog"
	"karolbroda.com/encore/internal/config"
	"karolbroda.com/encore/internal/lyrics"
)

// newCatalog builds the catalog client and logs in when a password is set.
func newCatalog(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*catalog.Client, error) {
	client, err := catalog.New(cfg.CatalogURL, cfg.CatalogPassword, cfg.HTTPTimeout, logger.Named("catalog"))
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog client: %w", err)
	}
	if cfg.CatalogPassword == "" {
		return client, nil
	}
	if err := client.Login(ctx); err != nil {
		return nil, fmt.Errorf("failed to log in to %s: %w", cfg.CatalogURL, err)
	}
	return client, nil
}

func openCache(cfg *config.Config, logger *zap.Logger) (*cache.DiskCache, error) {
	diskCache, err := cache.New(cfg.CacheDir(), cfg.CacheTTL, logger.Named("cache"))
	if err != nil {
		return nil, fmt.Errorf("failed to open lyrics cache: %w", err)
	}
	return diskCache, nil
}

// newLyricsSource picks the lyrics provider named by LYRICS_SOURCE. The chain
// asks the catalog first and lrclib second.
func newLyricsSource(cfg *config.Config, client *catalog.Client, diskCache *cache.DiskCache, logger *zap.Logger) lyrics.Source {
	lrclib := lyrics.NewLrclibSource(cfg.LrclibURL, cfg.HTTPTimeout, diskCache, logger.Named("lrclib"))

	switch cfg.LyricsSource {
	case "catalog":
		return client
	case "lrclib":
		return lrclib
	default:
		return lyrics.Chain{client, lrclib}
	}
}
