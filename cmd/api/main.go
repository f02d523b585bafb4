package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"stakereferral/internal/app"
	"stakereferral/internal/events"
	"stakereferral/internal/handlers"
	"stakereferral/internal/middleware"
	"stakereferral/internal/referral"
	"stakereferral/internal/routes"
	"stakereferral/pkg/config"
)

func main() {
	config.SetLogLevel()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.New(ctx)
	if err != nil {
		log.Fatal("Failed to build engine: ", err)
	}

	hub := events.NewHub(nil)
	defer hub.Close()
	emitters := referral.MultiEmitter{hub}

	// Initialize RabbitMQ (optional, will log warning if not configured)
	if os.Getenv("RABBITMQ_HOST") != "" {
		config.InitRabbitMQ()
		defer config.RabbitMQ.Close()

		publisher, err := config.NewPublisher()
		if err != nil {
			log.Fatal("Failed to create publisher: ", err)
		}
		defer publisher.Close()

		queue := events.NewQueueEmitter(publisher, config.EventsQueue, 0)
		defer queue.Close()
		emitters = append(emitters, queue)
		handlers.SettleQueue = publisher
		log.Info("RabbitMQ initialized successfully")
	} else {
		log.Info("RabbitMQ not configured, skipping initialization")
	}
	rt.Engine.SetEmitter(emitters)

	handlers.Engine = rt.Engine
	handlers.Accounts = rt.Store
	handlers.RPCEndpoints = app.RPCEndpoints()

	opts := routes.Options{Events: hub, Context: ctx}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps <= 0 {
			log.Fatalf("Invalid RATE_LIMIT_RPS %q", v)
		}
		opts.RateLimit = &middleware.RateLimiterConfig{
			RequestsPerSecond: rps,
			Burst:             int(rps*2) + 1,
			KeyHeader:         handlers.HeaderCaller,
		}
	}
	r := routes.SetupRouter(opts)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{Addr: ":" + port, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server: ", err)
		}
	}()
	log.WithField("port", port).Info("API server started")

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
	log.Info("API server stopped")
}
