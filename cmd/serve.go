package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gallery/internal/constants"
	"github.com/kozaktomas/face-gallery/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Gallery HTTP API.

Endpoints:
  GET  /api/v1/health
  GET  /api/v1/identities[?name=]
  POST /api/v1/identities          (multipart: name, file)
  GET  /api/v1/identities/{id}
  GET  /api/v1/identities/{id}/image
  POST /api/v1/recognize           (multipart: file, optional top_k)`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	webCfg := a.cfg.Web
	if port := mustGetInt(cmd, "port"); port > 0 {
		webCfg.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		webCfg.Host = host
	}

	server := web.NewServer(&webCfg, a.svc, a.engine.Convention(), a.logger)

	go func() {
		<-ctx.Done()
		fmt.Println("\nShutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	count, err := a.svc.Count(ctx)
	if err != nil {
		return fmt.Errorf("reading gallery: %w", err)
	}
	fmt.Printf("Gallery backend: %s (%d identities)\n", a.cfg.Gallery.Backend, count)
	fmt.Printf("Matching: %s, threshold %.3f, top_k %d\n", a.engine.Convention(), a.cfg.Matching.Threshold, a.cfg.Matching.TopK)
	fmt.Printf("Starting Face Gallery API on http://%s\n", webCfg.Address())
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
