package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-risk-monitor/pkg/jobs"
)

type fakeEnqueuer struct {
	jobs []jobs.Job
	err  error
}

func (f *fakeEnqueuer) TryEnqueue(job jobs.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakePublisher struct {
	bodies [][]byte
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.bodies = append(f.bodies, body)
	return nil
}

type stubRecomputer struct {
	failures int
	calls    []string
}

func (s *stubRecomputer) Recompute(ctx context.Context, studentID string) (*RecomputeResult, error) {
	s.calls = append(s.calls, studentID)
	if len(s.calls) <= s.failures {
		return nil, errBoom
	}
	return &RecomputeResult{StudentID: studentID}, nil
}

func TestQueueSchedulerEnqueuesStudentID(t *testing.T) {
	q := &fakeEnqueuer{}
	metrics := NewMetricsService()
	s := NewQueueScheduler(q, metrics)

	require.NoError(t, s.Schedule(context.Background(), "stu-1"))
	require.Len(t, q.jobs, 1)
	assert.Equal(t, RecomputeJobType, q.jobs[0].Type)
	assert.Equal(t, "stu-1", q.jobs[0].Payload)

	q.err = errBoom
	err := s.Schedule(context.Background(), "stu-1")
	require.Error(t, err)
	assert.Contains(t, scrape(metrics), `performance_schedule_failures_total{transport="memory"} 1`)
}

func TestBrokerSchedulerPublishesMessage(t *testing.T) {
	pub := &fakePublisher{}
	s := NewBrokerScheduler(pub, nil)
	s.now = func() time.Time { return testNow }

	require.NoError(t, s.Schedule(context.Background(), "stu-1"))
	require.Len(t, pub.bodies, 1)

	var msg RecomputeRequested
	require.NoError(t, json.Unmarshal(pub.bodies[0], &msg))
	assert.Equal(t, RecomputeJobType, msg.Type)
	assert.Equal(t, "stu-1", msg.StudentID)
	assert.True(t, msg.RequestedAt.Equal(testNow))

	pub.err = errBoom
	assert.ErrorIs(t, s.Schedule(context.Background(), "stu-1"), errBoom)
}

func TestRecomputeJobHandler(t *testing.T) {
	engine := &stubRecomputer{}
	handler := RecomputeJobHandler(engine)

	require.NoError(t, handler(context.Background(), jobs.Job{Type: RecomputeJobType, Payload: "stu-1"}))
	assert.Equal(t, []string{"stu-1"}, engine.calls)

	assert.Error(t, handler(context.Background(), jobs.Job{Type: RecomputeJobType, Payload: 42}))
}

func TestRecomputeMessageHandlerRetries(t *testing.T) {
	engine := &stubRecomputer{failures: 2}
	handler := RecomputeMessageHandler(engine, 2, time.Millisecond, nil)
	body, _ := json.Marshal(RecomputeRequested{Type: RecomputeJobType, StudentID: "stu-1"})

	require.NoError(t, handler(context.Background(), body))
	assert.Len(t, engine.calls, 3)
}

func TestRecomputeMessageHandlerGivesUp(t *testing.T) {
	engine := &stubRecomputer{failures: 10}
	handler := RecomputeMessageHandler(engine, 1, time.Millisecond, nil)
	body, _ := json.Marshal(RecomputeRequested{Type: RecomputeJobType, StudentID: "stu-1"})

	err := handler(context.Background(), body)
	assert.True(t, errors.Is(err, errBoom))
	assert.Len(t, engine.calls, 2)
}

func TestRecomputeMessageHandlerRejectsMalformed(t *testing.T) {
	engine := &stubRecomputer{}
	handler := RecomputeMessageHandler(engine, 3, time.Millisecond, nil)

	assert.Error(t, handler(context.Background(), []byte("{not json")))
	assert.Error(t, handler(context.Background(), []byte(`{"type":"other","studentId":"stu-1"}`)))
	assert.Error(t, handler(context.Background(), []byte(`{"type":"performance.recompute","studentId":" "}`)))
	assert.Empty(t, engine.calls)
}

func TestScheduleRecomputeSurvivesCancelledRequest(t *testing.T) {
	sched := &fakeScheduler{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scheduleRecompute(ctx, sched, zap.NewNop(), "stu-1")
	assert.Equal(t, []string{"stu-1"}, sched.scheduled)
}

func TestQueueSchedulerDoesNotBlockOnFullQueue(t *testing.T) {
	block := make(chan struct{})
	queue := jobs.NewQueue(RecomputeJobType, func(context.Context, jobs.Job) error {
		<-block
		return nil
	}, jobs.QueueConfig{Workers: 1, BufferSize: 1})
	queue.Start(context.Background())
	defer func() {
		close(block)
		queue.Stop()
	}()

	metrics := NewMetricsService()
	s := NewQueueScheduler(queue, metrics)
	require.NoError(t, s.Schedule(context.Background(), "stu-1"))
	require.Eventually(t, func() bool { return queue.Pending() == 0 }, time.Second, time.Millisecond)
	require.NoError(t, s.Schedule(context.Background(), "stu-2"))

	start := time.Now()
	scheduleRecompute(context.Background(), s, zap.NewNop(), "stu-3")
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.ErrorIs(t, s.Schedule(context.Background(), "stu-4"), jobs.ErrFull)
	assert.Contains(t, scrape(metrics), `performance_schedule_failures_total{transport="memory"} 2`)
}
