package main

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/nightcrawler/internal/config"
	"github.com/jonathan/nightcrawler/internal/fetch"
	"github.com/jonathan/nightcrawler/internal/llm"
	"github.com/jonathan/nightcrawler/internal/matching"
	"github.com/jonathan/nightcrawler/internal/optimizer"
	"github.com/jonathan/nightcrawler/internal/settings"
)

// app holds the components shared by every command.
type app struct {
	cfg       *config.Config
	logger    *logrus.Logger
	store     *settings.Store
	caller    *llm.Caller
	optimizer *optimizer.Optimizer
	analyzer  *matching.Analyzer
}

// newLogger builds the process logger from config, with the command-line
// flags taking precedence.
func newLogger(cfg *config.Config, out io.Writer, debug, json bool) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, errors.Wrap(err, "invalid log level")
	}
	if debug {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	if json || cfg.LogJSON() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// openApp loads the configuration and wires storage, the LLM caller, the
// optimizer and the analyzer.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, os.Stderr, verbose, logJSON)
	if err != nil {
		return nil, err
	}
	return wireApp(ctx, cfg, logger)
}

func wireApp(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*app, error) {
	dsn, err := cfg.StorageDSN()
	if err != nil {
		return nil, err
	}
	backend, err := settings.Open(ctx, cfg.Storage.Driver, dsn)
	if err != nil {
		return nil, err
	}

	storeOpts := []settings.Option{settings.WithLogger(logger.WithField("component", "settings"))}
	if cfg.UseKeyring() {
		storeOpts = append(storeOpts, settings.WithVault(settings.NewKeyringVault()))
	}
	store := settings.NewStore(backend, storeOpts...)

	callerOpts := []llm.CallerOption{
		llm.WithHTTPClient(&http.Client{Timeout: cfg.LLMTimeout()}),
		llm.WithLogger(logger.WithField("component", "llm")),
	}
	var source llm.ConfigSource = store
	if cfg.LLM.BaseURL != "" {
		source = baseURLSource{ConfigSource: store, baseURL: cfg.LLM.BaseURL}
	}
	caller := llm.NewCaller(source, callerOpts...)

	logger.WithFields(logrus.Fields{
		"storage": cfg.Storage.Driver,
		"keyring": cfg.UseKeyring(),
	}).Debug("application wired")

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  store,
		caller: caller,
		optimizer: optimizer.New(caller,
			optimizer.WithBatchDelay(cfg.BatchDelay()),
			optimizer.WithLogger(logger.WithField("component", "optimizer"))),
		analyzer: matching.NewAnalyzer(caller,
			matching.WithLogger(logger.WithField("component", "matching"))),
	}, nil
}

// Close releases the storage backend.
func (a *app) Close() error {
	return a.store.Close()
}

// postingLoader loads postings with the configured browser fallback.
func (a *app) postingLoader(browser bool) func(ctx context.Context, location string) (*fetch.Posting, error) {
	fetchOpts := fetch.DefaultOptions()
	fetchOpts.Logger = a.logger.WithField("component", "fetch")
	opts := fetch.PostingOptions{
		Fetch:          fetchOpts,
		Browser:        browser,
		BrowserTimeout: a.cfg.BrowserTimeout(),
	}
	return func(ctx context.Context, location string) (*fetch.Posting, error) {
		return fetch.LoadPosting(ctx, location, opts)
	}
}

// baseURLSource points OpenAI calls at a configured endpoint.
type baseURLSource struct {
	llm.ConfigSource
	baseURL string
}

func (s baseURLSource) AIConfig(ctx context.Context) (llm.Config, error) {
	cfg, err := s.ConfigSource.AIConfig(ctx)
	if err != nil {
		return cfg, err
	}
	if cfg.Provider == llm.ProviderOpenAI || cfg.Provider == "" {
		cfg.BaseURL = s.baseURL
	}
	return cfg, nil
}
