package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"stakereferral/internal/app"
	"stakereferral/internal/events"
	"stakereferral/pkg/config"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})
	config.SetLogLevel()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.New(ctx)
	if err != nil {
		log.Fatal("Failed to build engine: ", err)
	}

	config.InitRabbitMQ()
	defer config.RabbitMQ.Close()

	publisher, err := config.NewPublisher()
	if err != nil {
		log.Fatal("Failed to create publisher: ", err)
	}
	defer publisher.Close()
	queue := events.NewQueueEmitter(publisher, config.EventsQueue, 0)
	defer queue.Close()
	rt.Engine.SetEmitter(queue)

	msgConsumer, err := config.NewConsumer(config.SettleRequestsQueue)
	if err != nil {
		log.Fatal("Failed to create consumer: ", err)
	}
	defer msgConsumer.Close()

	// 启动时清空积压的结算请求
	if os.Getenv("PURGE_SETTLE_QUEUE") == "true" {
		if err := config.PurgeQueue(config.SettleRequestsQueue); err != nil {
			log.Fatal("Failed to purge settle queue: ", err)
		}
	}

	log.Info("Settlement worker started, waiting for messages...")
	err = msgConsumer.Consume(ctx, events.SettleHandler(rt.Engine))
	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("Consumer stopped")
		return
	}
	log.Info("Settlement worker stopped")
}
