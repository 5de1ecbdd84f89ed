package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/BiblioOps/Noticus/internal/config/notify-api"
	"github.com/BiblioOps/Noticus/internal/domain/notice"
	"github.com/BiblioOps/Noticus/internal/handoff"
	"github.com/BiblioOps/Noticus/internal/httpapi"
	"github.com/BiblioOps/Noticus/internal/obs"
	"github.com/BiblioOps/Noticus/internal/obs/retry"
	kafkax "github.com/BiblioOps/Noticus/internal/repository/kafka"
	pg "github.com/BiblioOps/Noticus/internal/repository/postgres"
	"github.com/BiblioOps/Noticus/internal/services/deliverer"
	"github.com/BiblioOps/Noticus/internal/services/notices"
	"github.com/BiblioOps/Noticus/internal/services/scheduler"
)

func wiring(cfg *config.Config, db *pg.DB, producer *kafkax.Producer, l *zap.Logger) *httpapi.Server {
	noticeRepo := pg.NewNoticeRepo(db)
	outboxRepo := pg.NewOutboxRepo(db)
	reminderRepo := pg.NewReminderRepo(db, cfg.Sched.ReminderWindow)
	tx := pg.NewTransactor(db, l)

	smsGateway := kafkax.NewSMSKafka(producer, retry.SMSPublishPolicy(l))

	senders := map[notice.Channel]deliverer.Sender{
		notice.ChannelEmail: deliverer.NewMailer(cfg.SMTP).WithLogger(l),
		notice.ChannelSMS:   deliverer.NewSMSSender(smsGateway),
	}

	sched := &scheduler.Usecase{
		Guard:   scheduler.NewGuard(cfg.Sched.Env, cfg.Sched.CronSecretHash),
		Source:  reminderRepo,
		Catalog: reminderRepo,
		Notices: notices.NewEnqueuer(noticeRepo, outboxRepo, tx),
		Org:     cfg.Sched.Org,
		Log:     l,
	}

	return &httpapi.Server{
		Log:        l,
		Scheduler:  sched,
		Worker:     deliverer.NewWorker(l, outboxRepo, senders, tx),
		Deliveries: outboxRepo,
		Notices:    noticeRepo,
		Handoff:    handoff.New(handoff.WithTTL(cfg.Handoff.TTL)),
		DrainLimit: cfg.Worker.DrainLimit,
	}
}

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
	l.Info("starting notify-api",
		zap.String("http_addr", cfg.HTTP.Addr),
		zap.String("metrics_addr", cfg.HTTP.MetricsAddr),
		zap.String("env", cfg.Sched.Env),
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

	ms := obs.BootstrapMetricsServer(cfg.HTTP.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		return db.Pool.Ping(hctx)
	}, l)

	if err := kafkax.EnsureTopic(rootCtx, cfg.Kafka.Brokers, kafkax.TopicSpec{Name: cfg.Kafka.Topic}, l); err != nil {
		l.Warn("ensure sms topic", zap.Error(err))
	}

	producer := kafkax.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, l)
	defer func() { _ = producer.Close() }()

	srv := wiring(cfg, db, producer, l)
	api := httpapi.Serve(cfg.HTTP.Addr, srv.Router(), l)

	<-rootCtx.Done()
	l.Info("shutdown signal")

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = api.Shutdown(shCtx)
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
