package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tissguard/validator/config"
	"github.com/tissguard/validator/engine"
	"github.com/tissguard/validator/pkg/logger"
	"github.com/tissguard/validator/terminology"
)

// errInvalid is returned when at least one document failed validation.
// It maps to exit code 1 without printing an extra error line.
var errInvalid = errors.New("validation failed")

func exitCode(err error) int {
	if errors.Is(err, errInvalid) {
		return 1
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 2
}

// app bundles what every command needs: the configuration, the reference
// table and a validator built on it.
type app struct {
	cfg       *config.Config
	store     terminology.Store
	validator *engine.Validator
	closeFn   func() error
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Log.Format = format
	}
	if rules, _ := cmd.Flags().GetString("rules"); rules != "" {
		cfg.Rules.File = rules
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logger.SetDefault(logger.NewWithFormat(os.Stderr,
		logger.ParseLevel(cfg.Log.Level), logger.Format(cfg.Log.Format)))
	setColor(cmd)
	return cfg, nil
}

func setColor(cmd *cobra.Command) {
	mode, _ := cmd.Flags().GetString("color")
	switch mode {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	}
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	store, closeFn, err := config.OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	v := engine.New(store, cfg.Options()...)
	if cfg.Rules.File != "" {
		if _, err := v.LoadRules(cfg.Rules.File); err != nil {
			_ = closeFn()
			return nil, err
		}
	}

	return &app{cfg: cfg, store: store, validator: v, closeFn: closeFn}, nil
}

func (a *app) Close() {
	_ = a.validator.Close()
	if err := a.closeFn(); err != nil {
		logger.Warn("failed to close reference table", "err", err)
	}
}
