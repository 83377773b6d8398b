package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/OCAP2/datamaps/internal/config"
	"github.com/OCAP2/datamaps/internal/relay"
)

func newRelayCommand() *cobra.Command {
	var listen, path, upstream string
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Serve a linked event relay so map instances can share global dismissals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetRelayConfig()
			if listen != "" {
				cfg.Listen = listen
			}
			if path != "" {
				cfg.Path = path
			}
			if upstream != "" {
				cfg.URL = upstream
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveRelay(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Address to listen on (default from config)")
	cmd.Flags().StringVar(&path, "path", "", "HTTP path of the websocket endpoint")
	cmd.Flags().StringVar(&upstream, "upstream", "", "Websocket URL of another relay to bridge to")
	return cmd
}

func serveRelay(ctx context.Context, cfg config.RelayConfig) error {
	hub := relay.NewHub(Logger)

	if cfg.URL != "" {
		client, err := relay.Dial(cfg.URL, hub, Logger)
		if err != nil {
			return fmt.Errorf("bridging to %s: %w", cfg.URL, err)
		}
		defer client.Close()
		Logger.Info("Bridged to upstream relay", "url", cfg.URL)
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, relay.NewHandler(hub, Logger))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "hub %s, %d peers\n", hub.ID(), hub.Peers())
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		Logger.Info("Relay listening", "addr", cfg.Listen, "path", cfg.Path, "hub", hub.ID())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	Logger.Info("Shutting down relay")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
