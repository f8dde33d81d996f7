package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-risk-monitor/pkg/config"
	"github.com/noah-isme/sma-risk-monitor/pkg/jobs"
)

// RecomputeJobType identifies recompute jobs and messages.
const RecomputeJobType = "performance.recompute"

const scheduleTimeout = time.Second

// PerformanceScheduler hands a recompute request to a worker without waiting for it to run.
type PerformanceScheduler interface {
	Schedule(ctx context.Context, studentID string) error
}

// RecomputeRequested is the wire message published for the rabbitmq transport.
type RecomputeRequested struct {
	Type        string    `json:"type"`
	StudentID   string    `json:"studentId"`
	RequestedAt time.Time `json:"requestedAt"`
}

type recomputer interface {
	Recompute(ctx context.Context, studentID string) (*RecomputeResult, error)
}

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

type messagePublisher interface {
	Publish(ctx context.Context, body []byte) error
}

// QueueScheduler schedules recomputes on the in-process job queue.
type QueueScheduler struct {
	queue   jobEnqueuer
	metrics *MetricsService
}

// NewQueueScheduler constructs a QueueScheduler.
func NewQueueScheduler(queue jobEnqueuer, metrics *MetricsService) *QueueScheduler {
	return &QueueScheduler{queue: queue, metrics: metrics}
}

// Schedule enqueues one recompute job for studentID. It never waits for buffer space.
func (s *QueueScheduler) Schedule(_ context.Context, studentID string) error {
	err := s.queue.TryEnqueue(jobs.Job{Type: RecomputeJobType, Payload: studentID})
	if err != nil {
		s.metrics.RecordScheduleFailure(config.TransportMemory)
		return fmt.Errorf("enqueue recompute: %w", err)
	}
	return nil
}

// BrokerScheduler publishes recompute requests to RabbitMQ.
type BrokerScheduler struct {
	publisher messagePublisher
	metrics   *MetricsService
	now       func() time.Time
}

// NewBrokerScheduler constructs a BrokerScheduler.
func NewBrokerScheduler(publisher messagePublisher, metrics *MetricsService) *BrokerScheduler {
	return &BrokerScheduler{publisher: publisher, metrics: metrics, now: time.Now}
}

// Schedule publishes one RecomputeRequested message for studentID.
func (s *BrokerScheduler) Schedule(ctx context.Context, studentID string) error {
	body, err := json.Marshal(RecomputeRequested{
		Type:        RecomputeJobType,
		StudentID:   studentID,
		RequestedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode recompute request: %w", err)
	}
	if err := s.publisher.Publish(ctx, body); err != nil {
		s.metrics.RecordScheduleFailure(config.TransportRabbitMQ)
		return fmt.Errorf("publish recompute: %w", err)
	}
	return nil
}

// RecomputeJobHandler adapts the engine to the in-process job queue. The queue retries failed jobs.
func RecomputeJobHandler(engine recomputer) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		studentID, ok := job.Payload.(string)
		if !ok || studentID == "" {
			return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
		}
		_, err := engine.Recompute(ctx, studentID)
		return err
	}
}

// RecomputeMessageHandler adapts the engine to broker deliveries. Failed runs are retried up to
// maxRetries times, delay apart, before the error is returned and the message dropped.
func RecomputeMessageHandler(engine recomputer, maxRetries int, delay time.Duration, logger *zap.Logger) func(context.Context, []byte) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, body []byte) error {
		var msg RecomputeRequested
		if err := json.Unmarshal(body, &msg); err != nil {
			return fmt.Errorf("decode recompute request: %w", err)
		}
		if msg.Type != RecomputeJobType || strings.TrimSpace(msg.StudentID) == "" {
			return fmt.Errorf("invalid recompute request type=%q student=%q", msg.Type, msg.StudentID)
		}

		var err error
		for attempt := 0; attempt <= maxRetries; attempt++ {
			if attempt > 0 {
				logger.Warn("recompute failed, retrying", zap.String("student_id", msg.StudentID), zap.Int("attempt", attempt), zap.Error(err))
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
			if _, err = engine.Recompute(ctx, msg.StudentID); err == nil {
				return nil
			}
		}
		return err
	}
}

// scheduleRecompute triggers a recompute after a recorder commit. Failures are logged and
// never returned: the recorded write already succeeded.
func scheduleRecompute(ctx context.Context, scheduler PerformanceScheduler, logger *zap.Logger, studentID string) {
	if scheduler == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), scheduleTimeout)
	defer cancel()
	if err := scheduler.Schedule(ctx, studentID); err != nil {
		logger.Warn("failed to schedule performance recompute", zap.String("student_id", studentID), zap.Error(err))
	}
}
