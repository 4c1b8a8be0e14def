package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiesman99/relief/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the vector tile HTTP server",
	Long: `Start an HTTP server producing contour and hillshade vector tiles.

Tiles are served under /tiles/{kind}/{z}/{x}/{y}.mvt where kind is one of
contour, hillshade or terrain. Prometheus metrics are exposed on /metrics.

Examples:
  # Start server on default port 8080
  relief serve

  # Start server on custom port
  relief serve --port 3000

  # Start server with custom bind address
  relief serve --bind 0.0.0.0 --port 8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server configuration
	serveCmd.Flags().StringP("bind", "b", "localhost", "bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("timeout", 60*time.Second, "request timeout")

	// Bind flags to viper
	viper.BindPFlag("server.bind", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.timeout", serveCmd.Flags().Lookup("timeout"))
}

func runServe(cmd *cobra.Command, args []string) error {
	bind := viper.GetString("server.bind")
	port := viper.GetInt("server.port")
	timeout := viper.GetDuration("server.timeout")

	addr := fmt.Sprintf("%s:%d", bind, port)

	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := server.ConfigFromViper()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tileServer := server.NewServer(cfg,
		server.NewTileCache(cfg.CacheEnabled, cfg.CacheSize, cfg.CacheTTL),
		server.NewMetrics(registry),
		log)

	// Create Chi router
	r := chi.NewRouter()

	// Add middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(timeout))
	r.Use(server.RequestLogger(log))
	r.Use(server.CORS)

	tileServer.Routes(r)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	log.Info().
		Str("addr", addr).
		Str("source", cfg.TileURL).
		Stringer("encoding", cfg.Encoding).
		Bool("cache", cfg.CacheEnabled).
		Msg("starting relief server")
	fmt.Fprintf(cmd.ErrOrStderr(), "Tile endpoint: http://%s/tiles/{kind}/{z}/{x}/{y}.mvt\n", addr)
	fmt.Fprintf(cmd.ErrOrStderr(), "Health check: http://%s/health\n", addr)

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %v", err)
	}

	return nil
}
