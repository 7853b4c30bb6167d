package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"framesearch/internal/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the retrieval HTTP API",
	Long: `Load the corpus and every configured backend, then serve the HTTP API.

Routes:
  POST /clip/clipTextRetrieval
  POST /clip/searchByImage?model_type=<backend>
  POST /clip/multiEventSearch
  POST /clip/multiModalSearch
  GET  /healthz`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg, GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("backends ready", "backends", rt.selector.Backends())

	gin.SetMode(gin.ReleaseMode)
	return api.NewServer(rt.retrieve, cfg.Server, logger).Run(ctx)
}
