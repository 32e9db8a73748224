package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/miradorstack/mirador-forecast/internal/cache"
	"github.com/miradorstack/mirador-forecast/internal/config"
	"github.com/miradorstack/mirador-forecast/internal/engine"
	"github.com/miradorstack/mirador-forecast/internal/model"
	"github.com/miradorstack/mirador-forecast/internal/models"
	"github.com/miradorstack/mirador-forecast/internal/repo"
	"github.com/miradorstack/mirador-forecast/internal/services"
)

// app bundles the wired components shared by serve and predict.
type app struct {
	cache   cache.Provider
	service *services.ForecastService
}

func (a *app) Close() error {
	if a.cache == nil {
		return nil
	}
	return a.cache.Close()
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	cacheProvider := buildCache(ctx, cfg.Cache, logger)

	scorer, err := buildModel(cfg, cacheProvider, logger)
	if err != nil {
		_ = cacheProvider.Close()
		return nil, err
	}

	artifacts, err := engine.LoadArtifacts(cfg.Artifacts.Dir, logger)
	if err != nil {
		_ = cacheProvider.Close()
		return nil, fmt.Errorf("load artifacts: %w", err)
	}

	pipeline, err := engine.NewPipeline(logger, artifacts, scorer, engine.Options{
		StrictCategories:    cfg.Pipeline.StrictCategories,
		UnknownCategoryCode: cfg.Pipeline.UnknownCategoryCode,
	})
	if err != nil {
		_ = cacheProvider.Close()
		return nil, err
	}

	opts := services.Options{MaxBatchRows: cfg.Server.MaxBatchRows}
	if cfg.Cache.Enabled {
		opts.BatchTTL = cfg.Cache.BatchTTL
	}
	return &app{
		cache:   cacheProvider,
		service: services.NewForecastService(logger, pipeline, cacheProvider, opts),
	}, nil
}

// buildCache falls back to no caching when the backend is unreachable.
func buildCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) cache.Provider {
	if !cfg.Enabled {
		return cache.NoopProvider{}
	}
	switch cfg.Backend {
	case "redis":
		provider, err := cache.NewRedisProvider(ctx, cache.RedisConfig{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxRetries:   cfg.MaxRetries,
			KeyPrefix:    cfg.KeyPrefix,
		})
		if err != nil {
			logger.Warn("redis cache unavailable", slog.String("addr", cfg.Addr), slog.Any("error", err))
			return cache.NoopProvider{}
		}
		return provider
	default:
		return cache.NewMemoryProvider()
	}
}

func buildModel(cfg *config.Config, cacheProvider cache.Provider, logger *slog.Logger) (engine.Model, error) {
	switch cfg.Model.Kind {
	case "remote":
		ttl := cfg.Cache.ScoreTTL
		if !cfg.Cache.Enabled {
			ttl = 0
		}
		logger.Info("using remote scorer", slog.String("endpoint", cfg.Model.Endpoint))
		return repo.NewScoringClient(
			cfg.Model.Endpoint,
			cfg.Model.PredictPath,
			models.FeatureColumns,
			cfg.Model.Timeout,
			cacheProvider,
			ttl,
		), nil
	default:
		linear, err := model.LoadLinear(cfg.Model.Path)
		if err != nil {
			return nil, fmt.Errorf("load model: %w", err)
		}
		logger.Info("using linear model", slog.String("name", linear.Name()), slog.String("path", cfg.Model.Path))
		return linear, nil
	}
}
