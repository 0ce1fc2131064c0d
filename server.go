package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tdm/pkg/config"
	"github.com/tdm/pkg/metrics"
	"github.com/tdm/pkg/stream"
)

var (
	port          int
	frameInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Stream generated runs and trigger reports to websocket clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log := logrus.WithField("component", "server")
		return runServer(cmd.Context(), cfg, resolveSeed(cfg, log), port, frameInterval, log)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on")
	serveCmd.Flags().DurationVar(&frameInterval, "frame-interval", 0, "pause between broadcast frames (0 = as fast as possible)")
}

// runServer serves /ws, /api/status and /metrics until ctx is cancelled.
func runServer(ctx context.Context, cfg config.Config, seed uint64, port int, interval time.Duration, log *logrus.Entry) error {
	srv := stream.NewServer(ctx, cfg, seed, log, metrics.New())
	srv.FrameInterval = interval

	addr := fmt.Sprintf(":%d", port)
	httpSrv := &http.Server{Addr: addr, Handler: srv.Routes()}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.ListenAndServe()
	}()
	log.WithFields(logrus.Fields{"addr": addr, "seed": seed}).Info("TDM stream server listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := httpSrv.Shutdown(shutdownCtx)
	srv.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
