package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/quote-engine/api"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var addr string

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = a.cfg.Server.Address
			}

			opts := api.RouterOptions{
				AllowedOrigins: a.cfg.Server.CORSOrigins,
				Developer:      a.cfg.Server.Developer,
			}
			if a.cfg.Metrics.Enabled {
				opts.Metrics = a.registry
				opts.MetricsPath = a.cfg.Metrics.Path
			}
			router := api.NewRouter(api.NewHandler(a.service), opts)

			scheduler := api.NewInboxScheduler(a.service, a.cfg.Import.InboxDir)
			scheduler.Interval = a.cfg.Import.PollInterval
			if scheduler.Enabled {
				if err := os.MkdirAll(scheduler.Dir, 0o755); err != nil {
					return err
				}
			}
			scheduler.Start()
			defer scheduler.Stop()

			server := &http.Server{
				Addr:         addr,
				Handler:      router,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 5 * time.Minute,
				IdleTimeout:  60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Printf("Server starting on %s", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case <-quit:
			}

			log.Println("Shutting down server...")
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return err
			}
			log.Println("Server stopped")
			return nil
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")

	return serve
}
