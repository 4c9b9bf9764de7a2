// Package file provides the default JSON state store with atomic replacement
// semantics: writes go to a temp file in the same directory and are renamed
// into place, so a crash mid-write leaves the previous state intact.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sawpanic/alphatilt/internal/persistence"
)

const (
	portfolioFile = "portfolio_target.json"
	regimeFile    = "regime_status.json"
)

// Store persists engine state as JSON files under one directory
type Store struct {
	dir string
}

// NewStore creates a file store rooted at dir, creating it if needed
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create state dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// LoadPortfolio reads the persisted target state
func (s *Store) LoadPortfolio(ctx context.Context) (*persistence.PortfolioTargetState, error) {
	var state persistence.PortfolioTargetState
	if err := s.readJSON(portfolioFile, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SavePortfolio atomically replaces the persisted target state
func (s *Store) SavePortfolio(ctx context.Context, state persistence.PortfolioTargetState) error {
	return s.writeJSON(portfolioFile, state)
}

// LoadRegime reads the last regime status
func (s *Store) LoadRegime(ctx context.Context) (*persistence.RegimeStatus, error) {
	var status persistence.RegimeStatus
	if err := s.readJSON(regimeFile, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SaveRegime atomically replaces the regime status
func (s *Store) SaveRegime(ctx context.Context, status persistence.RegimeStatus) error {
	return s.writeJSON(regimeFile, status)
}

func (s *Store) readJSON(name string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return persistence.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (s *Store) writeJSON(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp for %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp for %s: %w", name, err)
	}

	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
