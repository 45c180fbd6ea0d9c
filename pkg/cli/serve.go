package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/mirage/pkg/config"
	"github.com/getmockd/mirage/pkg/engine"
	"github.com/getmockd/mirage/pkg/logging"
)

// shutdownTimeout bounds the graceful stop after a signal.
const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [scenario]",
		Short: "Serve a scenario over HTTP",
		Long: `Serve loads a scenario file or directory and answers HTTP requests from it
until interrupted. The admin API is served under the admin prefix.`,
		Example: `  mirage serve contacts.yaml
  mirage serve ./scenarios --port 8080 --timing 200ms
  mirage serve contacts.yaml --upstream https://api.example.com
  MIRAGE_SCENARIO=contacts.yaml mirage serve`,
		Args: cobra.MaximumNArgs(1),
		RunE: runServe,
	}
	cmd.Flags().String("host", defaultHost, "Host to listen on")
	cmd.Flags().IntP("port", "p", defaultPort, "Port to listen on (0 picks a free port)")
	cmd.Flags().String("timing", "", "Override the scenario's default delay, e.g. 250ms")
	cmd.Flags().String("upstream", "", "Base URL for pass-through requests, overrides the scenario's upstream")
	cmd.Flags().String("admin-prefix", engine.DefaultAdminPrefix, "Path prefix of the admin API (empty disables it)")
	addLogFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	path, err := settings.scenarioPath(args)
	if err != nil {
		return err
	}
	log, closeLog, err := settings.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	sc, err := config.Load(path)
	if err != nil {
		return err
	}
	opts := []engine.Option{
		engine.WithLogger(logging.Component(log, "engine")),
		engine.WithAdminPrefix(settings.AdminPrefix),
	}
	if settings.Timing != "" {
		d, err := time.ParseDuration(settings.Timing)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid --timing %q: use a duration like 250ms", settings.Timing)
		}
		opts = append(opts, engine.WithTiming(d))
	}
	if settings.Upstream != "" {
		u, err := engine.ParseUpstream(settings.Upstream)
		if err != nil {
			return err
		}
		opts = append(opts, engine.WithUpstream(u))
	}
	srv, err := sc.Build(opts...)
	if err != nil {
		return fmt.Errorf("invalid scenario %s: %w", path, err)
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(settings.Host, strconv.Itoa(settings.Port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()

	routes, _ := srv.Routes().Routes()
	fmt.Fprintf(cmd.OutOrStdout(), "mirage listening on http://%s (%d routes)\n", ln.Addr(), len(routes))
	log.Info("server started", "addr", ln.Addr().String(), "scenario", path, "routes", len(routes))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("pending calls did not finish", "error", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}
