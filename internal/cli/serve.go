package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/me/chatadmin/internal/backend"
	"github.com/me/chatadmin/internal/config"
	"github.com/me/chatadmin/internal/store"
	"github.com/me/chatadmin/internal/web"
)

// sessionSweepInterval is how often expired web sessions are purged
// from the store.
const sessionSweepInterval = time.Hour

func newServeCmd() *cobra.Command {
	var (
		flagAddr       string
		flagBackendURL string
		flagDomain     string
		flagDB         string
		flagSecure     bool
	)

	defaults := config.Default()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the portal HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Flags win over the config file; cfg is loaded by the
			// root command before this runs.
			if cmd.Flags().Changed("addr") {
				cfg.Addr = flagAddr
			}
			if cmd.Flags().Changed("backend-url") {
				cfg.BackendURL = flagBackendURL
			}
			if cmd.Flags().Changed("domain") {
				cfg.Domain = flagDomain
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = flagDB
			}
			if cmd.Flags().Changed("secure-cookies") {
				cfg.SecureCookies = flagSecure
			}
			return runServe()
		},
	}

	cmd.Flags().StringVar(&flagAddr, "addr", defaults.Addr, "Listen address")
	cmd.Flags().StringVar(&flagBackendURL, "backend-url", defaults.BackendURL, "Chat backend API base URL")
	cmd.Flags().StringVar(&flagDomain, "domain", "", "Service domain appended to bare localparts")
	cmd.Flags().StringVar(&flagDB, "db", "", "Session database path (default ~/.chatadmin/sessions.db)")
	cmd.Flags().BoolVar(&flagSecure, "secure-cookies", false, "Set the Secure flag on session cookies")

	return cmd
}

func runServe() error {
	if cfg.Domain == "" {
		return fmt.Errorf("service domain must be set (--domain or config file)")
	}

	dbPath, err := resolveDBPath(cfg.DBPath)
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("database ready", "path", dbPath)

	transport := backend.NewTransport(cfg.BackendURL, time.Duration(cfg.RequestTimeout), logger)
	w := web.New(st, transport, web.Config{
		Domain:        cfg.Domain,
		SessionTTL:    time.Duration(cfg.SessionTTL),
		SecureCookies: cfg.SecureCookies,
	}, logger)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: w.Routes(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sweepSessions(ctx, st)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "backend", cfg.BackendURL, "domain", cfg.Domain)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// sweepSessions periodically drops expired sessions so the store does
// not accumulate dead rows between restarts.
func sweepSessions(ctx context.Context, st store.Store) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := st.DeleteExpiredSessions(ctx)
			if err != nil {
				logger.Error("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("expired sessions removed", "count", n)
			}
		}
	}
}

// resolveDBPath defaults the session database into the user's home
// directory, creating the parent directory when needed.
func resolveDBPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".chatadmin")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dir, err)
	}
	return filepath.Join(dir, "sessions.db"), nil
}
