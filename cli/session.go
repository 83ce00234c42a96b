// Package cli wires configuration, storage and the UI behind the quickroot
// command line.
package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"quickroot/config"
	"quickroot/db"
	"quickroot/repo"
	"quickroot/runner"
	"quickroot/transfer"
)

// Session holds everything a command needs. Close releases the store and log.
type Session struct {
	Config  *config.Config
	Logger  *slog.Logger
	Repo    *repo.Repository
	Gateway *runner.Gateway
	Flow    *transfer.Flow

	closers []func() error
}

// OpenFunc builds a Session. Tests substitute their own.
type OpenFunc func() (*Session, error)

// OpenSession loads config, opens the log and the store, and loads the
// command list.
func OpenSession() (*Session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, closeLog, err := cfg.OpenLogger()
	if err != nil {
		return nil, err
	}
	s := &Session{Config: cfg, Logger: logger, closers: []func() error{closeLog}}

	store, err := db.New(cfg.DataDir)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s.closers = append(s.closers, store.Close)

	r, err := repo.New(store, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Repo = r
	s.Gateway = runner.NewGateway(cfg.ElevationMode(), logger)
	s.Flow = transfer.New(r, cfg.ExportDir, logger)
	logger.Debug("session opened", "data_dir", cfg.DataDir, "commands", len(r.List()))
	return s, nil
}

// NewSession assembles a Session from an already open store.
func NewSession(cfg *config.Config, store repo.Store, logger *slog.Logger) (*Session, error) {
	r, err := repo.New(store, logger)
	if err != nil {
		return nil, err
	}
	return &Session{
		Config:  cfg,
		Logger:  logger,
		Repo:    r,
		Gateway: runner.NewGateway(cfg.ElevationMode(), logger),
		Flow:    transfer.New(r, cfg.ExportDir, logger),
	}, nil
}

func (s *Session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
