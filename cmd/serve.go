package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/togpt/togpt/internal/pprof"
	"github.com/togpt/togpt/internal/serve"
)

var (
	serveAddr      string
	serveToken     string
	servePprofPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local HTTP API for the web UI",
	Long: `Serve the chat engine over HTTP on localhost.

The API lives under /api, the state feed is a websocket at /api/events and
/theme.js is the pre-paint theme script for the page head.

Examples:
  togpt serve
  togpt serve --addr 127.0.0.1:9000 --token s3cret
  togpt serve --pprof 6060`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config serve.addr)")
	serveCmd.Flags().StringVar(&serveToken, "token", "", "Require this bearer token on /api (overrides config serve.token)")
	serveCmd.Flags().IntVar(&servePprofPort, "pprof", -1, "Start the debug server on this localhost port (0 picks one)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.Serve.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	token := a.cfg.Serve.Token
	if serveToken != "" {
		token = serveToken
	}

	srv := serve.New(serve.Options{
		Registry:       a.registry,
		Preferences:    a.prefs,
		Searcher:       a.searcher(),
		Token:          token,
		AllowedOrigins: a.cfg.Serve.AllowedOrigins,
		Logger:         a.logger,
	})
	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "togpt listening on http://%s\n", ln.Addr())

	if servePprofPort >= 0 {
		debug := pprof.NewServer(func() any { return a.registry.Snapshot() }, a.logger)
		port, err := debug.Start(servePprofPort)
		if err != nil {
			ln.Close()
			return err
		}
		defer debug.Stop(context.Background())
		pprof.PrintUsage(cmd.ErrOrStderr(), port)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		a.registry.StopGeneration()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
