package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/twax-curation-api/internal/app"
	"github.com/twax-curation-api/internal/config"
	"github.com/twax-curation-api/internal/database"
	"github.com/twax-curation-api/pkg/logger"
)

type commandContext struct {
	envFlag *string

	configOnce sync.Once
	config     *config.Config
	log        zerolog.Logger
	configErr  error
}

func newCommandContext(envFlag *string) *commandContext {
	return &commandContext{envFlag: envFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.envFlag != nil {
			path = strings.TrimSpace(*c.envFlag)
		}
		if path != "" {
			if err := godotenv.Load(path); err != nil {
				c.configErr = fmt.Errorf("load env file: %w", err)
				return
			}
		} else {
			_ = godotenv.Load()
		}

		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.log = logger.New(cfg.Log.Level, cfg.Log.Format)
	})
	return c.config, c.configErr
}

// openDB connects without running migrations
func (c *commandContext) openDB() (*database.DB, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return database.New(&cfg.Database, c.log)
}

// openApp builds the full service graph, migrating the schema first
func (c *commandContext) openApp(ctx context.Context) (*app.App, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, c.log)
}
