package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	appconfig "arbflow/config"
	"arbflow/logger"
	"arbflow/notify"
	"arbflow/processor"
	"arbflow/reader/bybit"
	"arbflow/web"
	"arbflow/writer"
)

func main() {
	// A missing .env file is fine; the environment may already be populated.
	_ = godotenv.Load()

	configPath := flag.String("config", "config/config.yml", "path to configuration file")
	flag.Parse()

	log := logger.GetLogger()

	cfg, err := appconfig.LoadConfig(*configPath)
	if err != nil {
		log.WithComponent("main").WithError(err).Fatal("failed to load configuration")
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithComponent("main").WithError(err).Fatal("failed to configure logging")
	}

	log.WithComponent("main").WithFields(logger.Fields{
		"name":    cfg.Arbflow.Name,
		"version": cfg.Arbflow.Version,
	}).Info("starting arbflow")

	if cfg.Logging.CloudWatch {
		logger.InitCloudWatch(cfg.Storage.S3.Region, cfg.Logging.Namespace, cfg.Logging.DashboardName)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Logging.Level == "report" {
		logger.StartReport(ctx, log, time.Minute)
	}

	var archiver processor.SnapshotArchiver
	if cfg.Storage.S3.Enabled {
		s3Writer, err := writer.NewS3SnapshotWriter(ctx, cfg.Storage.S3)
		if err != nil {
			log.WithComponent("main").WithError(err).Fatal("failed to initialize s3 snapshot writer")
		}
		archiver = s3Writer
	}

	reader := bybit.NewTickerReader(cfg)
	scanner := processor.NewScanner(cfg, reader, archiver)

	hub := web.NewHub()
	sinks := []notify.Sink{hub}

	var redisPub *notify.RedisPublisher
	if cfg.Notify.Redis.Enabled {
		redisPub = notify.NewRedisPublisher(cfg)
		sinks = append(sinks, redisPub)
	}

	monitor := processor.NewMonitor(cfg, scanner, notify.NewFanout(sinks...))
	monitor.Start()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc("0 0 * * *", func() { logger.LogDailyReport(log) }); err != nil {
		log.WithComponent("main").WithError(err).Warn("failed to schedule daily report")
	}
	scheduler.Start()

	server := web.NewServer(cfg.Web, scanner, monitor, hub)
	serverErr := make(chan error, 1)
	if server != nil {
		go func() {
			serverErr <- server.Run(ctx)
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithComponent("main").WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.WithComponent("main").WithError(err).Error("web server exited")
		}
	}

	cancel()
	monitor.Stop()
	scheduler.Stop()
	if redisPub != nil {
		if err := redisPub.Close(); err != nil {
			log.WithComponent("main").WithError(err).Warn("failed to close redis publisher")
		}
	}

	log.WithComponent("main").Info("arbflow stopped")
}
