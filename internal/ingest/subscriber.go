// Package ingest receives sensor readings over MQTT and feeds them to the
// telemetry service through a bounded worker pool.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smukkama/sentinel-server/internal/anomaly"
	"github.com/smukkama/sentinel-server/internal/protocol"
	"github.com/smukkama/sentinel-server/internal/service"
	"github.com/smukkama/sentinel-server/internal/validation"
	"github.com/smukkama/sentinel-server/pkg/config"
)

const (
	defaultWorkers   = 8
	defaultQueueSize = 1000
	connectTimeout   = 10 * time.Second
	ingestTimeout    = 10 * time.Second
)

var ErrInvalidTopic = errors.New("invalid topic")

// Ingester is the part of service.TelemetryService used by the subscriber
type Ingester interface {
	IngestHealth(ctx context.Context, userID uuid.UUID, in anomaly.HealthReading, at time.Time) (*service.HealthResult, error)
	IngestSystem(ctx context.Context, userID uuid.UUID, in anomaly.SystemReading, at time.Time) (*service.SystemResult, error)
}

// Job is one sensor message waiting for a worker
type Job struct {
	Topic      string
	UserID     uuid.UUID
	Kind       protocol.ReadingKind
	Payload    []byte
	ReceivedAt time.Time
}

// Subscriber listens on <prefix>/<userID>/health and <prefix>/<userID>/system
type Subscriber struct {
	config *config.MQTTConfig
	sink   Ingester
	logger *zap.Logger
	client mqtt.Client

	jobQueue    chan *Job
	workerCount int

	wg     sync.WaitGroup
	stopCh chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

func NewSubscriber(cfg *config.MQTTConfig, sink Ingester, logger *zap.Logger) *Subscriber {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Subscriber{
		config:      cfg,
		sink:        sink,
		logger:      logger,
		jobQueue:    make(chan *Job, queueSize),
		workerCount: workers,
		stopCh:      make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		now:         time.Now,
	}
}

// Topics returns the subscription filters
func (s *Subscriber) Topics() []string {
	prefix := strings.TrimSuffix(s.config.TopicPrefix, "/")
	return []string{
		prefix + "/+/" + string(protocol.KindHealth),
		prefix + "/+/" + string(protocol.KindSystem),
	}
}

// Start connects to the broker, subscribes and starts the workers
func (s *Subscriber) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.config.Broker)
	opts.SetClientID(s.config.ClientID)
	if s.config.Username != "" {
		opts.SetUsername(s.config.Username)
	}
	if s.config.Password != "" {
		opts.SetPassword(s.config.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn("MQTT connection lost", zap.Error(err))
	})
	// resubscribe after every (re)connect since the session is clean
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if err := s.subscribe(c); err != nil {
			s.logger.Error("MQTT subscribe failed", zap.Error(err))
		}
	})

	s.startWorkers()

	s.client = mqtt.NewClient(opts)
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("timed out connecting to MQTT broker %s", s.config.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	s.logger.Info("MQTT subscriber started",
		zap.String("broker", s.config.Broker),
		zap.Strings("topics", s.Topics()),
		zap.Int("workers", s.workerCount))
	return nil
}

func (s *Subscriber) subscribe(c mqtt.Client) error {
	filters := make(map[string]byte, 2)
	for _, topic := range s.Topics() {
		filters[topic] = byte(s.config.QoS)
	}

	token := c.SubscribeMultiple(filters, func(_ mqtt.Client, msg mqtt.Message) {
		s.Enqueue(msg.Topic(), msg.Payload())
	})
	token.Wait()
	return token.Error()
}

// Stop disconnects and drains the workers
func (s *Subscriber) Stop() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Unsubscribe(s.Topics()...).WaitTimeout(time.Second)
		s.client.Disconnect(250)
	}

	close(s.stopCh)
	s.cancel()
	s.wg.Wait()
	s.logger.Info("MQTT subscriber stopped")
}

func (s *Subscriber) startWorkers() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *Subscriber) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case job := <-s.jobQueue:
			if err := s.process(job); err != nil {
				s.logger.Warn("Dropping sensor message",
					zap.Int("worker", id),
					zap.String("topic", job.Topic),
					zap.Error(err))
			}
		case <-s.stopCh:
			return
		}
	}
}

// Enqueue hands a message to the pool without blocking. Messages on unknown
// topics, or arriving while the queue is full, are dropped.
func (s *Subscriber) Enqueue(topic string, payload []byte) bool {
	userID, kind, err := ParseTopic(s.config.TopicPrefix, topic)
	if err != nil {
		s.logger.Warn("Ignoring sensor message", zap.String("topic", topic), zap.Error(err))
		return false
	}

	job := &Job{
		Topic:      topic,
		UserID:     userID,
		Kind:       kind,
		Payload:    payload,
		ReceivedAt: s.now().UTC(),
	}

	select {
	case s.jobQueue <- job:
		return true
	default:
		s.logger.Warn("Ingest queue full, dropping message",
			zap.String("topic", topic),
			zap.Int("queue_size", cap(s.jobQueue)))
		return false
	}
}

// ParseTopic extracts the user id and reading kind from <prefix>/<userID>/<kind>
func ParseTopic(prefix, topic string) (uuid.UUID, protocol.ReadingKind, error) {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	rest, ok := strings.CutPrefix(topic, prefix)
	if !ok {
		return uuid.Nil, "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		return uuid.Nil, "", fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	userID, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("%w: bad user id %q", ErrInvalidTopic, parts[0])
	}

	kind := protocol.ReadingKind(parts[1])
	switch kind {
	case protocol.KindHealth, protocol.KindSystem:
	default:
		return uuid.Nil, "", fmt.Errorf("%w: unknown kind %q", ErrInvalidTopic, parts[1])
	}
	return userID, kind, nil
}

func (s *Subscriber) process(job *Job) error {
	env, err := protocol.ParseEnvelope(job.Payload)
	if err != nil {
		return err
	}
	if env.Kind != job.Kind {
		return fmt.Errorf("payload kind %q does not match topic", env.Kind)
	}

	at, err := env.Time(job.ReceivedAt)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(s.ctx, ingestTimeout)
	defer cancel()

	switch job.Kind {
	case protocol.KindHealth:
		var req validation.HealthReading
		if err := decodeData(env.Data, &req); err != nil {
			return err
		}
		result, err := s.sink.IngestHealth(ctx, job.UserID, req.Reading(), at)
		if err != nil {
			return err
		}
		s.logIngested(job, len(result.Anomalies))

	case protocol.KindSystem:
		var req validation.SystemReading
		if err := decodeData(env.Data, &req); err != nil {
			return err
		}
		result, err := s.sink.IngestSystem(ctx, job.UserID, req.Reading(), at)
		if err != nil {
			return err
		}
		s.logIngested(job, len(result.Anomalies))
	}
	return nil
}

func decodeData(data json.RawMessage, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("invalid reading: %w", err)
	}
	return validation.Struct(dst)
}

func (s *Subscriber) logIngested(job *Job, anomalies int) {
	s.logger.Debug("Sensor reading ingested",
		zap.String("user_id", job.UserID.String()),
		zap.String("kind", string(job.Kind)),
		zap.Int("anomalies", anomalies))
}
