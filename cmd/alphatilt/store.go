package main

import (
	"fmt"
	"io"

	"github.com/sawpanic/alphatilt/internal/config"
	"github.com/sawpanic/alphatilt/internal/persistence"
	filestore "github.com/sawpanic/alphatilt/internal/persistence/file"
	"github.com/sawpanic/alphatilt/internal/persistence/postgres"
)

// openStore builds the configured state store backend. The returned closer is
// a no-op for the file backend.
func openStore(cfg config.Config) (persistence.Store, io.Closer, error) {
	switch cfg.Store.Backend {
	case "postgres":
		store, err := postgres.Open(cfg.Store.PostgresDSN, cfg.Store.StoreTimeout())
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, store, nil
	default:
		store, err := filestore.NewStore(cfg.Store.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("open file store: %w", err)
		}
		return store, nopCloser{}, nil
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
