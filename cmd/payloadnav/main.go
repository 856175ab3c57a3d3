// Command payloadnav flies the payload navigation mission, reprocesses recorded
// flights, and runs the ground receiver.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"payloadnav/internal/config"
	"payloadnav/internal/metrics"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "payloadnav",
	Short: "Inertial landing-cell estimation for a recoverable payload",
	Long: `payloadnav samples a BNO055 through launch and landing, integrates the
rotated acceleration into a ground-track displacement and reports the recovery
map cell over a best-effort UDP link.

Examples:
  payloadnav fly --config flight.yaml
  payloadnav fly --sim
  payloadnav process flight.tsv.zst --launch 38.663484,-90.365707
  payloadnav receive --config ground.yaml
  payloadnav locate 38.663568 -90.366002`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (defaults when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")
	rootCmd.AddCommand(flyCmd, processCmd, receiveCmd, locateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("config load failed: %w", err)
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func newLogger(c config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// serveMetrics exposes /metrics until ctx ends. An empty listen address
// disables it.
func serveMetrics(ctx context.Context, listen string, logger *slog.Logger) {
	if listen == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics listening", "addr", listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
