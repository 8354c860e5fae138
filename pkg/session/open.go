package session

import (
	"context"
	"fmt"
)

// Store backends selectable through StoreConfig.Backend.
const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// StoreConfig selects and configures a Store backend.
type StoreConfig struct {
	Backend     string
	MongoURL    string
	DBName      string
	DatabaseURL string
}

// OpenStore opens the backend named by cfg.Backend.
func OpenStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Backend {
	case BackendMongo, "":
		return NewMongoStore(ctx, cfg.MongoURL, cfg.DBName)
	case BackendPostgres:
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
