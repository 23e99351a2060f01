package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/geosnap/georaster/internal/fetch"
	"github.com/geosnap/georaster/internal/imagery"
	"github.com/geosnap/georaster/internal/server"
)

const version = "1.0.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP imagery API",
	Long: `Start an HTTP server exposing the mosaic entrypoint.

POST /api/v1/image takes a GeoJSON feature plus options and returns the
stitched PNG with georeferencing response headers. Identical requests are
served from an in-memory cache for a short TTL.

Examples:
  # ESRI World Imagery on the default port
  georaster serve

  # Mapbox-backed server on a custom port
  georaster serve --provider mapbox --token $MAPBOX_TOKEN --port 3000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("bind", "b", "localhost", "bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("timeout", 60*time.Second, "request timeout")
	serveCmd.Flags().Duration("cache-ttl", 5*time.Minute, "raster cache TTL")
	serveCmd.Flags().Int64("cache-size", 64, "raster cache capacity")

	viper.BindPFlag("server.bind", serveCmd.Flags().Lookup("bind"))
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.timeout", serveCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("server.cache-ttl", serveCmd.Flags().Lookup("cache-ttl"))
	viper.BindPFlag("server.cache-size", serveCmd.Flags().Lookup("cache-size"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	addr := fmt.Sprintf("%s:%d", viper.GetString("server.bind"), viper.GetInt("server.port"))
	timeout := viper.GetDuration("server.timeout")

	fetcher := fetch.New(viper.GetString("user-agent"), logger)
	svc := imagery.NewService(providerConfig(), fetcher, logger)
	srv := server.New(svc, server.Config{
		Version:   version,
		CacheTTL:  viper.GetDuration("server.cache-ttl"),
		CacheSize: viper.GetInt64("server.cache-size"),
	}, logger)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Routes(timeout),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting imagery server",
		zap.String("addr", addr),
		zap.String("provider", viper.GetString("provider")))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %v", err)
	}
	return nil
}
