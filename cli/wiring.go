// Package cli implements the superego command line: an HTTP server mode and
// direct chat/compare runs streaming to stdout.
package cli

import (
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/Superego-Agent/superego-lgdemo-sub000/config"
	"github.com/Superego-Agent/superego-lgdemo-sub000/constitution"
	"github.com/Superego-Agent/superego-lgdemo-sub000/core"
	"github.com/Superego-Agent/superego-lgdemo-sub000/logging"
	"github.com/Superego-Agent/superego-lgdemo-sub000/model"
	"github.com/Superego-Agent/superego-lgdemo-sub000/model/anthropic"
	"github.com/Superego-Agent/superego-lgdemo-sub000/model/openai"
	"github.com/Superego-Agent/superego-lgdemo-sub000/server"
	"github.com/Superego-Agent/superego-lgdemo-sub000/session"
	"github.com/Superego-Agent/superego-lgdemo-sub000/stage"
	"github.com/Superego-Agent/superego-lgdemo-sub000/telemetry"
	"github.com/Superego-Agent/superego-lgdemo-sub000/tool"
)

// app bundles the wired dependencies every command shares.
type app struct {
	cfg      *config.Config
	logger   logging.Logger
	registry *constitution.Registry
	store    session.Store
	factory  server.ExecutorFactory
	cleanup  func()
}

// buildApp loads configuration and assembles stores, the policy registry
// and the per-request executor factory.
func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, exitError(2, "loading config: %v", err)
	}

	logger := newLogger(cfg.Logging)

	registry, err := constitution.Load(cfg.Constitutions.Dir)
	if err != nil {
		return nil, exitError(2, "loading constitutions from %s: %v", cfg.Constitutions.Dir, err)
	}

	cleanup := func() {}
	var store session.Store
	switch cfg.Storage.Type {
	case "", "memory":
		store = session.NewInMemoryStore()
	case "sqlite":
		sq, err := session.NewSQLiteStore(session.SQLiteStoreConfig{DSN: cfg.Storage.SQLite.Path})
		if err != nil {
			return nil, exitError(2, "opening session store: %v", err)
		}
		store = sq
		cleanup = func() { _ = sq.Close() }
	default:
		return nil, exitError(2, "unknown storage type %q", cfg.Storage.Type)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		store:    store,
		factory:  executorFactory(cfg, logger),
		cleanup:  cleanup,
	}, nil
}

func newLogger(cfg config.LoggingConfig) logging.Logger {
	level := logging.LogLevelInfo
	switch cfg.Level {
	case "debug":
		level = logging.LogLevelDebug
	case "warn":
		level = logging.LogLevelWarn
	case "error":
		level = logging.LogLevelError
	}
	return logging.NewSlogLogger(level, cfg.Format, false)
}

// executorFactory builds per-request stage executors. Request keys override
// configured keys; the mock provider needs no credentials at all.
func executorFactory(cfg *config.Config, logger logging.Logger) server.ExecutorFactory {
	return func(keys server.APIKeys) core.StageExecutor {
		resolve := func(rc core.RunConfig) (model.Model, error) {
			switch rc.Provider {
			case "anthropic":
				key := keys.Anthropic
				if key == "" {
					key = cfg.Providers.Anthropic.APIKey
				}
				return anthropic.NewModel(func(o *anthropic.Options) {
					o.APIKey = key
					if name := pickModel(rc.ModelName, cfg.Providers.Anthropic.DefaultModel); name != "" {
						o.Model = anthropicsdk.Model(name)
					}
				}), nil
			case "openai":
				key := keys.OpenAI
				if key == "" {
					key = cfg.Providers.OpenAI.APIKey
				}
				return openai.NewModel(func(o *openai.Options) {
					o.APIKey = key
					if name := pickModel(rc.ModelName, cfg.Providers.OpenAI.DefaultModel); name != "" {
						o.Model = name
					}
				}), nil
			case "mock":
				return model.NewMockModel("mock"), nil
			default:
				return nil, fmt.Errorf("unknown provider %q", rc.Provider)
			}
		}

		var exec core.StageExecutor = stage.New(resolve,
			tool.NewRegistry(tool.NewCalculatorTool()),
			stage.WithLogger(logger))
		if cfg.Tracing.Enabled {
			exec = telemetry.NewTracingExecutor(exec)
		}
		return exec
	}
}

func pickModel(requested, configured string) string {
	if requested != "" {
		return requested
	}
	return configured
}
