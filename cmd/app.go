package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kozaktomas/face-gallery/internal/config"
	"github.com/kozaktomas/face-gallery/internal/faceembed"
	"github.com/kozaktomas/face-gallery/internal/gallery"
	"github.com/kozaktomas/face-gallery/internal/gallery/postgres"
	"github.com/kozaktomas/face-gallery/internal/gallery/sqlite"
	"github.com/kozaktomas/face-gallery/internal/imagestore"
	"github.com/kozaktomas/face-gallery/internal/logging"
	"github.com/kozaktomas/face-gallery/internal/service"
	"github.com/kozaktomas/face-gallery/internal/similarity"
)

// app bundles everything a command needs. Close releases the gallery store.
type app struct {
	cfg    *config.Config
	store  gallery.Store
	svc    *service.Service
	engine *similarity.Engine
	logger *slog.Logger
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing gallery store", "error", err)
	}
}

// newApp loads configuration and wires the store, image store, embedder and service.
func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Log, os.Stderr)

	convention, err := similarity.ParseConvention(cfg.Matching.Convention)
	if err != nil {
		return nil, err
	}
	engine, err := similarity.NewEngine(convention)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	images, err := openImageStore(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	svc, err := service.New(store, faceembed.NewClient(cfg.Embedding.URL), images, engine, service.Options{
		TopK:              cfg.Matching.TopK,
		Threshold:         cfg.Matching.Threshold,
		RequireRegistered: cfg.Matching.RequireRegistered,
		Logger:            logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{cfg: cfg, store: store, svc: svc, engine: engine, logger: logger}, nil
}

// openStore opens the configured gallery backend.
func openStore(ctx context.Context, cfg *config.Config) (gallery.Store, error) {
	switch cfg.Gallery.Backend {
	case "postgres":
		store, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("opening PostgreSQL gallery: %w", err)
		}
		return store, nil
	default:
		store, err := sqlite.Open(ctx, cfg.Gallery.Path)
		if err != nil {
			return nil, fmt.Errorf("opening SQLite gallery %s: %w", cfg.Gallery.Path, err)
		}
		return store, nil
	}
}

// openImageStore opens the configured image backend.
func openImageStore(ctx context.Context, cfg *config.Config) (imagestore.Store, error) {
	ic := cfg.ImageStore
	switch ic.Backend {
	case "minio":
		store, err := imagestore.NewMinioStore(ctx, imagestore.MinioConfig{
			Endpoint:  ic.MinioEndpoint,
			AccessKey: ic.MinioAccessKey,
			SecretKey: ic.MinioSecretKey,
			Bucket:    ic.MinioBucket,
			Prefix:    ic.MinioPrefix,
			Secure:    ic.MinioSecure,
		})
		if err != nil {
			return nil, fmt.Errorf("opening MinIO image store: %w", err)
		}
		return store, nil
	default:
		store, err := imagestore.NewLocalStore(ic.Dir)
		if err != nil {
			return nil, fmt.Errorf("opening image directory %s: %w", ic.Dir, err)
		}
		return store, nil
	}
}

func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
