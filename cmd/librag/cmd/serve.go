package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"librag/internal/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the library and query API over HTTP",
	Long: `Serve the library and query API over HTTP.

Endpoints:
  GET   /books, /books/{id}          catalog
  POST  /books, PATCH /books/{id}    add, edit
  POST  /books/{id}/borrow|return    circulation
  GET   /transactions[.csv]          ledger
  POST  /index/refresh               rebuild the index
  POST  /query/context|answer        retrieval and answers
  GET   /health, /metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	h := api.NewHandler(a.library, a.rag, a.index, a.store, logger)
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(h, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "generation", a.index.Generation())
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

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
