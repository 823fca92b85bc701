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

	"github.com/jburnhams/image-stitch-sub000/internal/server"
	"github.com/jburnhams/image-stitch-sub000/pkg/decode"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the composite API",
	Long: `Start an HTTP server that composites images on request.

POST /api/v1/composite takes a JSON body with source image URLs and a
layout, and streams back the composite PNG without buffering it.

Examples:
  # Start server on default port 8080
  image-stitch serve

  # Start server on custom port
  image-stitch serve --port 3000

  # Start server with custom bind address
  image-stitch serve --bind 0.0.0.0 --port 8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server configuration
	serveCmd.Flags().StringP("bind", "b", "localhost", "bind address")
	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().Duration("timeout", 30*time.Second, "request timeout")

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
	logger := newLogger(cmd.ErrOrStderr())

	apiServer := server.New(version, decode.NewCache(), logger)

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     apiServer.Router(timeout),
		ReadTimeout: timeout,
		// No WriteTimeout: composite responses stream for as long as
		// the consumer keeps pulling.
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
			logger.Error("server shutdown", "err", err)
		}
	}()

	logger.Info("starting image-stitch server", "addr", addr)
	logger.Info("endpoints",
		"health", fmt.Sprintf("http://%s/api/v1/health", addr),
		"composite", fmt.Sprintf("http://%s/api/v1/composite", addr))

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %v", err)
	}

	return nil
}
