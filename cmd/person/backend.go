package main

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/config"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/database"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person/export"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person/repository"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/person/service"
	"github.com/Dmitrii-Lobanov/FCC-MongoDB-and-Mongoose/internal/storage"
)

// backend is what a command runs against.
type backend struct {
	cfg *config.Config
	svc service.Service
	// exporter is nil when MinIO is not configured
	exporter *export.Exporter
	close    func()
}

type opener func(ctx context.Context, memory bool) (*backend, error)

// openBackend loads the config and connects to the configured store. The CLI
// makes a single connection attempt and never falls back to memory silently.
func openBackend(ctx context.Context, memory bool) (*backend, error) {
	if memory {
		viper.Set("PERSON_STORE", config.StoreMemory)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	b := &backend{cfg: cfg, close: func() {}}

	var repo repository.Repository
	if cfg.Store.Driver == config.StoreMemory {
		repo = repository.NewMemoryRepo()
	} else {
		client, err := database.ConnectMongo(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout)
		if err != nil {
			return nil, err
		}
		b.close = func() { _ = client.Disconnect(context.Background()) }
		mr, err := repository.NewMongoRepo(ctx, client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection))
		if err != nil {
			b.close()
			return nil, err
		}
		repo = mr
	}
	b.svc = service.NewService(repo, service.Options{})

	if cfg.MinIO.Enabled() {
		st, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("export storage: %w", err)
		}
		b.exporter = export.New(b.svc, st)
	}
	return b, nil
}
