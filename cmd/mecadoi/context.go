package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mecadoi/internal/config"
	"mecadoi/internal/logging"
	"mecadoi/internal/store"
	"mecadoi/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// session bundles what a batch command needs. Close releases the store and
// the run lock.
type session struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	lock   *workflow.RunLock
}

// openSession loads config, logging and the store. When exclusive is set the
// run lock is taken first so two mutating commands never overlap.
func (c *commandContext) openSession(exclusive bool) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	s := &session{cfg: cfg, logger: logger}
	if exclusive {
		lock, err := workflow.AcquireRunLock(cfg.LockPath())
		if err != nil {
			return nil, err
		}
		s.lock = lock
	}
	st, err := store.Open(cfg)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	s.store = st
	return s, nil
}

func (s *session) runner() (*workflow.Runner, error) {
	return workflow.NewRunner(s.cfg, s.store, s.logger)
}

func (s *session) Close() {
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("store close failed", logging.Error(err))
		}
	}
	if err := s.lock.Release(); err != nil {
		s.logger.Warn("run lock release failed", logging.Error(err))
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
