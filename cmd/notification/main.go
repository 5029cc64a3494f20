package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/smukkama/sentinel-server/internal/logger"
	"github.com/smukkama/sentinel-server/internal/notification"
	"github.com/smukkama/sentinel-server/internal/protocol"
	"github.com/smukkama/sentinel-server/internal/queue"
	"github.com/smukkama/sentinel-server/pkg/config"
)

const (
	maxAttempts  = 3
	retryBackoff = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.App.Name+"-notification")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logg.Sync()

	notifier := notification.NewEmailNotifier(&cfg.SMTP, logg)
	if err := notifier.TestConnection(); err != nil {
		logg.Warn("SMTP unavailable, notifications will be logged only", zap.Error(err))
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, cfg.Kafka.GroupNotification)
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logg.Info("Notification service running",
		zap.String("topic", cfg.Kafka.TopicAlerts),
		zap.String("group", cfg.Kafka.GroupNotification))

	for {
		msg, err := consumer.Consume(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				break
			}
			logg.Error("Failed to consume message", zap.Error(err))
			continue
		}

		alert, err := protocol.DecodeAlertNotification(msg.Value)
		if err != nil {
			// poison message, skip it
			logg.Error("Failed to decode alert", zap.Int64("offset", msg.Offset), zap.Error(err))
			commit(ctx, logg, consumer, msg)
			continue
		}

		sent, err := deliver(ctx, logg, notifier, alert)
		if err != nil {
			if ctx.Err() != nil {
				// uncommitted, redelivered after restart
				break
			}
			logg.Error("Giving up on notification",
				zap.String("alert_id", alert.AlertID),
				zap.Int("attempts", maxAttempts),
				zap.Error(err))
		} else if sent {
			logg.Info("Critical alert emailed",
				zap.String("alert_id", alert.AlertID),
				zap.String("user_id", alert.UserID),
				zap.String("type", alert.AnomalyType))
		}

		commit(ctx, logg, consumer, msg)
	}

	stats := consumer.Stats()
	logg.Info("Shutting down gracefully", zap.Int64("messages", stats.Messages))
}

// deliver retries transient SMTP failures with a fixed backoff
func deliver(ctx context.Context, logg *zap.Logger, notifier *notification.EmailNotifier, alert *protocol.AlertNotification) (bool, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sent, err := notifier.Notify(alert)
		if err == nil {
			return sent, nil
		}
		lastErr = err
		logg.Warn("Failed to send notification",
			zap.String("alert_id", alert.AlertID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == maxAttempts {
			break
		}

		select {
		case <-time.After(retryBackoff):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return false, lastErr
}

func commit(ctx context.Context, logg *zap.Logger, consumer *queue.Consumer, msg kafka.Message) {
	if err := consumer.Commit(ctx, msg); err != nil {
		logg.Error("Failed to commit offset", zap.Int64("offset", msg.Offset), zap.Error(err))
	}
}
