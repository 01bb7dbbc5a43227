package main

import (
	"github.com/spf13/cobra"

	"github.com/tissguard/validator/pkg/logger"
	"github.com/tissguard/validator/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP validation service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg.Server
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Addr = addr
	}

	logger.Info("validator ready", "rules", len(a.validator.Rules()), "store", a.cfg.Store.Driver)
	return server.New(a.validator, cfg, a.cfg.Settings()).Run(cmd.Context())
}
