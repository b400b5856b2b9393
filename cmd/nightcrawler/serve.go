package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/nightcrawler/internal/server"
)

var (
	servePort    int
	serveBrowser bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the settings API server",
	Long:  `Start an HTTP server that exposes the settings, optimization and matching endpoints used by the settings page.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&serveBrowser, "browser", false, "Render postings in headless Chrome when static HTML has no job text")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	port := a.cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}

	srv := server.New(server.Config{
		Host:       a.cfg.Server.Host,
		Port:       port,
		CORSOrigin: a.cfg.Server.CORSOrigin,
	}, server.Deps{
		Store:       a.store,
		Optimizer:   a.optimizer,
		Analyzer:    a.analyzer,
		LoadPosting: a.postingLoader(serveBrowser),
		Logger:      a.logger.WithField("component", "server"),
	})
	return srv.Start(ctx)
}
