// Package main initializes and starts the ClassFeed server, setting up
// configuration, logging, the database, the change source, the live query
// hub, handlers and optional TLS.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atinyakov/ClassFeed/internal/auth"
	"github.com/atinyakov/ClassFeed/internal/changes"
	"github.com/atinyakov/ClassFeed/internal/config"
	"github.com/atinyakov/ClassFeed/internal/db"
	"github.com/atinyakov/ClassFeed/internal/livequery"
	"github.com/atinyakov/ClassFeed/internal/logger"
	"github.com/atinyakov/ClassFeed/internal/repository"
	"github.com/atinyakov/ClassFeed/internal/server/handler/http"
	"github.com/atinyakov/ClassFeed/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, config file and environment configuration.
	options, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Repositories stay unset without a database; the services then report
	// the backend as unavailable instead of failing to start.
	var (
		identities service.IdentityRepository
		media      service.MediaRepository
	)
	if options.DatabaseDSN != "" {
		postgresDB, err := db.InitPostgres(options.DatabaseDSN)
		if err != nil {
			zapLogger.Fatal("cannot init database", zap.Error(err))
		}
		defer postgresDB.Close()
		identities = repository.NewPostgresIdentityRepository(postgresDB)
		media = repository.NewPostgresMediaRepository(postgresDB)
	} else {
		zapLogger.Warn("no database configured, logins will report the service as not set up")
	}

	// Initialize business-logic services.
	if options.JWTSecretGenerated {
		zapLogger.Warn("no jwt secret configured, using a random one; sessions end on restart")
	}
	tokens := auth.NewIssuer(options.JWTSecret, "classfeed", options.TokenTTL)
	authService := service.NewAuthService(identities, tokens)
	feedService := service.NewFeedService(media)

	// Live queries and their metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	hub := livequery.NewHub(feedService, zapLogger, registry)

	source, closeSource := newChangeSource(options, zapLogger)
	defer closeSource()

	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		if err := hub.Run(ctx, source, options.RefreshInterval); err != nil {
			zapLogger.Error("live query hub stopped", zap.Error(err))
			stop()
		}
	}()

	// Create HTTP handlers and the router.
	authHandler := &http.AuthHandler{AuthService: authService, Log: zapLogger}
	feedHandler := &http.FeedHandler{Hub: hub, Items: feedService, Log: zapLogger}
	router := http.NewRouter(authHandler, feedHandler, tokens, registry, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if options.TLSCert != "" && options.TLSKey != "" {
			zapLogger.Info("starting HTTPS server", zap.String("addr", options.Port))
			serveErr <- server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
			return
		}
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Error("server failed", zap.Error(err))
		}
		stop()
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Closing the hub first ends open feed streams, which Shutdown does not wait for.
	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Warn("shutdown", zap.Error(err))
	}
	<-hubDone
	zapLogger.Info("server stopped")
}

// newChangeSource builds the configured source of media change notifications.
// It returns a nil source when there is nothing to listen to; the hub then
// relies on its periodic refresh.
func newChangeSource(options *config.Options, log *zap.Logger) (changes.Source, func()) {
	switch options.ChangeSource {
	case config.SourceRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     options.RedisAddr,
			Password: options.RedisPassword,
		})
		return changes.NewRedisSource(client, options.RedisChannel, log), func() { _ = client.Close() }
	default:
		if options.DatabaseDSN == "" {
			return nil, func() {}
		}
		return changes.NewPostgresSource(options.DatabaseDSN, db.ChangeChannel, log), func() {}
	}
}
