package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"api-testgen/internal/config"
	"api-testgen/internal/executor"
	"api-testgen/internal/generator"
	"api-testgen/internal/llm"
	"api-testgen/internal/logger"
	"api-testgen/internal/parser"
	"api-testgen/internal/store"
	"api-testgen/internal/workflow"

	"go.uber.org/zap"
)

const defaultConfigHint = config.DefaultPath + " when present"

// app carries what every command needs
type app struct {
	config *config.Config
	logger *zap.Logger
}

// newApp loads the config named by --config, falling back to the default
// location when it exists and to built-in defaults otherwise
func newApp(path string) (*app, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultPath); err == nil {
			path = config.DefaultPath
		}
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
		Dir:    cfg.Log.Dir,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return &app{config: cfg, logger: log}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func (a *app) timeout() time.Duration {
	return time.Duration(a.config.Test.Timeout) * time.Second
}

// newController creates a controller whose generator uses the configured request data
func (a *app) newController() (*workflow.Controller, error) {
	var overrides *generator.Overrides
	if a.config.Test.RequestData != "" {
		var err error
		overrides, err = generator.LoadOverrides(a.config.Test.RequestData)
		if err != nil {
			return nil, err
		}
	}
	return workflow.New(generator.New(overrides), a.logger), nil
}

// readDocument loads the document from a file or URL. Without a source it is
// discovered under the configured base URL.
func (a *app) readDocument(ctx context.Context, source string) (string, parser.Hint, error) {
	switch {
	case source == "":
		if a.config.Environment.BaseURL == "" {
			return "", parser.HintUnknown, fmt.Errorf("no document given: pass --spec or set environment.base_url")
		}
		return parser.NewFetcher(a.timeout(), a.logger).Discover(ctx, a.config.Environment.BaseURL)
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return parser.NewFetcher(a.timeout(), a.logger).Fetch(ctx, source)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return "", parser.HintUnknown, fmt.Errorf("failed to read document: %w", err)
	}
	return string(data), parser.ParseHint(strings.TrimPrefix(filepath.Ext(source), ".")), nil
}

// advance loads the document and moves the controller forward to step
func advance(controller *workflow.Controller, raw string, hint parser.Hint, step int) error {
	if err := controller.LoadDocument(raw, hint); err != nil {
		return err
	}
	for controller.CurrentStep() < step {
		if err := controller.Next(); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) newTarget() *executor.HTTPTarget {
	env := a.config.Environment
	return executor.NewHTTPTarget(executor.HTTPConfig{
		BaseURL:    env.BaseURL,
		AuthType:   env.Auth.Type,
		Token:      env.Auth.Token,
		Timeout:    a.timeout(),
		RetryCount: a.config.Test.Retry.Attempts,
		RetryWait:  time.Duration(a.config.Test.Retry.Delay) * time.Second,
		Headers:    env.Headers,
	}, a.logger)
}

func (a *app) newCoordinator(controller *workflow.Controller) *executor.Coordinator {
	return executor.NewCoordinator(controller, a.newTarget(), executor.Config{MaxWorkers: a.config.Test.MaxWorkers}, a.logger)
}

func (a *app) openStore(ctx context.Context) (store.SnapshotStore, error) {
	s := a.config.Store
	return store.Open(ctx, store.Config{
		Type:     s.Type,
		Dir:      s.Dir,
		Host:     s.Host,
		Port:     s.Port,
		Database: s.Database,
		User:     s.User,
		Password: s.Password,
		DB:       s.DB,
		Prefix:   s.Prefix,
	}, a.logger)
}

func (a *app) newSuggester() (*llm.RelationSuggester, error) {
	client, err := llm.NewClient(&a.config.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return llm.NewRelationSuggester(client, &a.config.LLM, a.logger), nil
}
