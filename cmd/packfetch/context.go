package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"packfetch/internal/config"
	"packfetch/internal/fetch"
	"packfetch/internal/i18n"
	"packfetch/internal/logging"
	"packfetch/internal/metacache"
	"packfetch/internal/services"
	"packfetch/internal/task"
)

type commandContext struct {
	configFlag *string
	langFlag   *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, langFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		langFlag:   langFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configSeen = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) printer() *i18n.Printer {
	if c.langFlag != nil {
		if lang := strings.TrimSpace(*c.langFlag); lang != "" {
			return i18n.New(lang)
		}
	}
	return i18n.Default()
}

// session bundles what a task-running command needs for one invocation.
type session struct {
	ctx     context.Context
	cfg     *config.Config
	logger  *slog.Logger
	printer *i18n.Printer
	cache   *metacache.Store
	client  *fetch.Client
}

func (s *session) close() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
}

// openSession loads config and logging, opens the download cache and builds
// the fetch client. Callers must close the session.
func (c *commandContext) openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	ctx := services.WithRequestID(cmd.Context(), uuid.NewString())
	store, err := metacache.Open(ctx, cfg.Paths.CacheDir, logger)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	client := fetch.New(store,
		fetch.WithTimeout(cfg.RequestTimeout()),
		fetch.WithUserAgent(cfg.Network.UserAgent),
		fetch.WithLogger(logger),
	)
	return &session{
		ctx:     ctx,
		cfg:     cfg,
		logger:  logger,
		printer: c.printer(),
		cache:   store,
		client:  client,
	}, nil
}

// runTask drives t to completion, rendering its events on the command's
// stderr.
func (s *session) runTask(cmd *cobra.Command, t task.Task) error {
	renderer := newProgressRenderer(cmd.ErrOrStderr())
	err := task.Run(s.ctx, t, renderer.observe)
	renderer.finish()
	return err
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
