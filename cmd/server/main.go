package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"clob/api/httpserver"
	"clob/api/ws"
	"clob/domain/book"
	"clob/infra/kafka"
	"clob/infra/outbox"
	"clob/infra/wal"
	"clob/jobs/broadcaster"
	"clob/jobs/depth"
	"clob/service"
)

func main() {
	var (
		port          = flag.Int("port", 8080, "HTTP listen port")
		walDir        = flag.String("wal-dir", "", "event journal directory (empty disables the journal)")
		outboxDir     = flag.String("outbox-dir", "", "trade outbox directory (empty disables the outbox)")
		kafkaBrokers  = flag.String("kafka-brokers", "", "comma-separated Kafka brokers (empty disables Kafka jobs)")
		tradeTopic    = flag.String("trade-topic", "trades", "Kafka topic for executed trades")
		depthTopic    = flag.String("depth-topic", "depth", "Kafka topic for depth snapshots")
		depthInterval = flag.Duration("depth-interval", time.Second, "depth snapshot publish interval")
		depthLevels   = flag.Int("depth-levels", 20, "depth snapshot levels per side")
		debug         = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logger := newLogger(*debug)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var journal *wal.WAL
	if *walDir != "" {
		var err error
		journal, err = wal.Open(wal.Config{Dir: *walDir})
		if err != nil {
			logger.Fatal("journal init failed", zap.Error(err))
		}
		defer journal.Close()
	}

	var ob *outbox.Outbox
	if *outboxDir != "" {
		var err error
		ob, err = outbox.Open(*outboxDir)
		if err != nil {
			logger.Fatal("outbox init failed", zap.Error(err))
		}
		defer ob.Close()
	}

	svc := service.New(book.New(), logger, journal, ob)

	hub := ws.NewHub(logger)
	go hub.Run(ctx)
	svc.RegisterTradeListener(hub.Publish)

	if *kafkaBrokers != "" {
		brokers := strings.Split(*kafkaBrokers, ",")

		if ob != nil {
			bc, err := broadcaster.New(ob, brokers, *tradeTopic, 250*time.Millisecond, logger)
			if err != nil {
				logger.Fatal("trade broadcaster init failed", zap.Error(err))
			}
			defer bc.Close()
			go bc.Run(ctx)
		}

		producer := kafka.NewProducer(brokers, *depthTopic)
		defer producer.Close()
		go depth.NewPublisher(svc, producer, *depthLevels, *depthInterval, logger).Run(ctx)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: httpserver.New(svc, logger, hub).Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("matching engine listening", zap.Int("port", *port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server exited", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
