package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/BiblioOps/Noticus/internal/config/notify-worker"
	"github.com/BiblioOps/Noticus/internal/domain/notice"
	"github.com/BiblioOps/Noticus/internal/obs"
	"github.com/BiblioOps/Noticus/internal/obs/retry"
	kafkax "github.com/BiblioOps/Noticus/internal/repository/kafka"
	pg "github.com/BiblioOps/Noticus/internal/repository/postgres"
	"github.com/BiblioOps/Noticus/internal/services/deliverer"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal(err)
	}

	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	l.Info("starting notify-worker",
		zap.Any("kafka", cfg.Kafka),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
		zap.String("smtp_addr", cfg.SMTP.Addr),
	)

	otelCloser, err := obs.SetupOTel(rootCtx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Warn("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	db, err := pg.New(rootCtx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	l.Info("db connected")

	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return db.Pool.Ping(hctx)
	}, l)

	if err := kafkax.EnsureTopic(rootCtx, cfg.Kafka.Brokers, kafkax.TopicSpec{Name: cfg.Kafka.Topic}, l); err != nil {
		l.Warn("ensure sms topic", zap.Error(err))
	}
	producer := kafkax.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, l)
	defer func() { _ = producer.Close() }()
	smsGateway := kafkax.NewSMSKafka(producer, retry.SMSPublishPolicy(l))

	senders := map[notice.Channel]deliverer.Sender{
		notice.ChannelEmail: deliverer.NewMailer(cfg.SMTP).WithLogger(l),
		notice.ChannelSMS:   deliverer.NewSMSSender(smsGateway),
	}

	worker := deliverer.NewWorker(l, pg.NewOutboxRepo(db), senders, pg.NewTransactor(db, l))
	runner := deliverer.NewRunner(l, worker, cfg.Worker)

	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(rootCtx) }()
	l.Info("worker started")

	select {
	case <-rootCtx.Done():
		l.Info("shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
