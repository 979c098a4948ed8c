// Package server wires configuration, storage and collaborators into the
// command pipeline and runs the gRPC endpoint alongside the metrics endpoint
// until shutdown.
package server

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

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/contacttrace/internal/logging"
	"github.com/dmitrijs2005/contacttrace/internal/server/auth"
	"github.com/dmitrijs2005/contacttrace/internal/server/config"
	"github.com/dmitrijs2005/contacttrace/internal/server/export"
	"github.com/dmitrijs2005/contacttrace/internal/server/handlers"
	"github.com/dmitrijs2005/contacttrace/internal/server/hashid"
	"github.com/dmitrijs2005/contacttrace/internal/server/metrics"
	"github.com/dmitrijs2005/contacttrace/internal/server/notifications"
	"github.com/dmitrijs2005/contacttrace/internal/server/pipeline"
	"github.com/dmitrijs2005/contacttrace/internal/server/repositories/repomanager"

	gs "github.com/dmitrijs2005/contacttrace/internal/server/grpc"
)

const (
	outboundTimeout = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	store      repomanager.Store
	metrics    *metrics.Metrics
	tokens     *auth.Issuer
	dispatcher *pipeline.Dispatcher
}

// NewApp builds every collaborator from c. With no database DSN the
// repositories live in memory; with no bucket exports do too.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	store, err := newStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	ids, err := hashid.New(c.HashIDSalt, c.HashIDMinLength)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("hashid init error: %w", err)
	}

	client := &http.Client{Timeout: outboundTimeout}
	m := metrics.New()
	tokens := auth.NewIssuer([]byte(c.SecretKey), c.TokenValidity)

	d, err := handlers.NewDispatcher(handlers.Deps{
		Store:        store,
		IDs:          ids,
		Push:         newPushSender(c, client, logger),
		Tokens:       tokens,
		Objects:      newObjectStore(c, client),
		Logger:       logger,
		PushFailures: m,
	}, m)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("pipeline init error: %w", err)
	}

	return &App{config: c, logger: logger, store: store, metrics: m, tokens: tokens, dispatcher: d}, nil
}

func newStore(ctx context.Context, c *config.Config) (repomanager.Store, error) {
	if !c.UsesPostgres() {
		return repomanager.NewMemoryStore(), nil
	}
	return repomanager.NewPostgresStore(ctx, c.DatabaseDSN)
}

func newPushSender(c *config.Config, client *http.Client, logger logging.Logger) handlers.PushSender {
	if c.FirebaseURL == "" {
		return notifications.NewLogSender(logger)
	}
	return notifications.NewFirebaseSender(client, c.FirebaseURL, c.FirebaseServerKey, c.FirebaseSenderID)
}

func newObjectStore(c *config.Config, client *http.Client) handlers.ObjectStore {
	if !c.UsesS3() {
		return export.NewMemoryStore(c.ExportURLExpiry)
	}
	return export.NewS3Store(export.S3Config{
		Region:       c.S3Region,
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		BaseEndpoint: c.S3BaseEndpoint,
		Bucket:       c.S3Bucket,
		URLExpiry:    c.ExportURLExpiry,
	}, client)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) runMetricsServer(ctx context.Context, lis net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "metrics shutdown failed", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Run serves until ctx is canceled, a termination signal arrives, or one of
// the servers fails. The store is closed on the way out.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.dispatcher, app.tokens).Run(gctx)
	})

	if app.config.MetricsAddr != "" {
		lis, err := net.Listen("tcp", app.config.MetricsAddr)
		if err != nil {
			cancelFunc()
			return errors.Join(fmt.Errorf("metrics listen: %w", err), g.Wait(), app.store.Close())
		}
		g.Go(func() error { return app.runMetricsServer(gctx, lis) })
	}

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "server stopped with error", "error", err)
	}
	return errors.Join(err, app.store.Close())
}
