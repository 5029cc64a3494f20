package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/smukkama/sentinel-server/internal/aggregation"
	"github.com/smukkama/sentinel-server/internal/database"
	"github.com/smukkama/sentinel-server/internal/logger"
	"github.com/smukkama/sentinel-server/internal/timer"
	"github.com/smukkama/sentinel-server/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logg, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.App.Name+"-aggregator")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logg.Sync()

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		logg.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	timerManager := timer.NewTimerManager(2, logg)
	timerManager.Start()
	defer timerManager.Stop()

	hourly := aggregation.NewHourlyAggregator(db, logg)

	// catch up on the hour that finished while we were down
	catchUp, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if _, err := hourly.AggregatePreviousHour(catchUp); err != nil {
		logg.Error("Catch-up aggregation failed", zap.Error(err))
	}
	cancel()

	if err := hourly.ScheduleHourly(timerManager, cfg.Aggregation.HourlyDelay); err != nil {
		logg.Fatal("Failed to schedule hourly aggregation", zap.Error(err))
	}

	logg.Info("Aggregation service running", zap.Duration("hourly_delay", cfg.Aggregation.HourlyDelay))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	stats := timerManager.Stats()
	logg.Info("Shutting down gracefully", zap.Int64("runs", stats.ExecutedTasks))
}
