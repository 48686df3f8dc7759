package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/runelight-sys/LyroDocs/internal/api"
	"github.com/runelight-sys/LyroDocs/internal/config"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Lyro Docs web server",
	Long: `Start the HTTP server with the upload UI and JSON API.

The OCR engine is loaded once at startup (or on the first request when
OCR_EAGER_INIT=false). If loading fails the server keeps running and every
analysis request reports that the engine is not ready.

Examples:
  lyro serve                  # listen on :8080
  lyro serve --addr :3000     # custom address
  PORT=9000 lyro serve        # port from the environment`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(v)
		if err != nil {
			return err
		}
		defer rt.engine.Close()

		if rt.cfg.OCREagerInit {
			if err := rt.engine.Init(); err != nil {
				rt.logger.Warn("continuing without ocr engine", "error", err)
			}
		}

		server := api.NewServer(rt.pipeline, api.Options{
			MaxUploadBytes: rt.cfg.MaxUploadBytes,
			LogoPath:       rt.cfg.LogoPath,
			Logger:         rt.logger.With("component", "http"),
		})

		srv := &http.Server{
			Addr:         rt.cfg.Addr,
			Handler:      server.Handler(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: rt.cfg.OCRTimeout + rt.cfg.CompletionTimeout + 15*time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			rt.logger.Info("listening", "addr", rt.cfg.Addr, "model", rt.cfg.CompletionModel)
			errCh <- srv.ListenAndServe()
		}()

		ctx := cmd.Context()
		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		rt.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "address to listen on (default \":\" + PORT)")
	bindFlags(serveCmd.Flags(), map[string]string{"addr": config.KeyAddr})
	rootCmd.Flags().AddFlagSet(serveCmd.Flags())
}
