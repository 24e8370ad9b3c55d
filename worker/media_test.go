package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fitgo/fit-go-core/database/router"
	"github.com/fitgo/fit-go-core/logger"
	"github.com/fitgo/fit-go-core/metrics"
	"github.com/fitgo/fit-go-core/models"
	"github.com/fitgo/fit-go-core/mq"
	"github.com/fitgo/fit-go-core/principal"
	"github.com/fitgo/fit-go-core/service"
	"github.com/fitgo/fit-go-core/validator"
)

// fakeConsumer 把消息直接喂给已订阅的 handler
type fakeConsumer struct {
	handlers map[string]mq.MessageHandler
	started  bool
	closed   bool
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{handlers: make(map[string]mq.MessageHandler)}
}

func (f *fakeConsumer) Subscribe(topic string, handler mq.MessageHandler) error {
	f.handlers[topic] = handler
	return nil
}

func (f *fakeConsumer) Start() error {
	f.started = true
	return nil
}

func (f *fakeConsumer) Close() error {
	f.closed = true
	return nil
}

func (f *fakeConsumer) deliver(t *testing.T, topic string, body []byte) mq.ConsumeResult {
	t.Helper()
	handler, ok := f.handlers[topic]
	if !ok {
		t.Fatalf("no handler for topic %s", topic)
	}
	result, err := handler(context.Background(), []*mq.ConsumedMessage{{
		Topic: topic,
		Body:  body,
		MsgID: "m1",
	}})
	if err != nil && result != mq.ConsumeRetryLater {
		t.Fatalf("handler error without retry: %v", err)
	}
	return result
}

func newTestWorker(t *testing.T) (*MediaWorker, *fakeConsumer, *service.WorkoutService) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Goal{}, &models.Level{}, &models.TrainingType{},
		&models.Modality{}, &models.Hashtag{}, &models.Workout{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	rt, err := router.NewWithConnections(map[principal.Role]*gorm.DB{
		principal.RoleAdmin:      db,
		principal.RoleInstructor: db,
		principal.RoleUser:       db,
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	workouts := service.NewWorkoutService(rt, validator.New(), logger.NewNop())
	consumer := newFakeConsumer()
	w := NewMediaWorker(consumer, workouts, logger.NewNop())
	if err := w.Start(); err != nil {
		t.Fatalf("start worker: %v", err)
	}
	return w, consumer, workouts
}

func TestMediaWorkerUpdatesWorkoutStatus(t *testing.T) {
	_, consumer, workouts := newTestWorker(t)
	ctx := context.Background()
	coach := principal.New(7, principal.RoleInstructor, "coach@fit.dev")

	w := &models.Workout{Title: "HIIT", MediaKey: models.NewMediaKey()}
	if err := workouts.Create(ctx, coach, w); err != nil {
		t.Fatalf("create workout: %v", err)
	}

	applied := testutil.ToFloat64(metrics.MediaEventsTotal.WithLabelValues(string(models.MediaStatusReady), "applied"))

	body, _ := json.Marshal(MediaEvent{
		WorkoutID: w.ID,
		MediaKey:  w.MediaKey,
		Status:    string(models.MediaStatusReady),
	})
	if result := consumer.deliver(t, mq.TopicMediaProcessed, body); result != mq.ConsumeSuccess {
		t.Fatalf("expected success, got %d", result)
	}

	if got := testutil.ToFloat64(metrics.MediaEventsTotal.WithLabelValues(string(models.MediaStatusReady), "applied")); got != applied+1 {
		t.Fatalf("expected applied counter to advance, got %v -> %v", applied, got)
	}

	got, err := workouts.GetByID(ctx, coach, w.ID)
	if err != nil {
		t.Fatalf("get workout: %v", err)
	}
	if got.MediaStatus != models.MediaStatusReady {
		t.Fatalf("expected ready, got %s", got.MediaStatus)
	}
}

func TestMediaWorkerSkipsUnrecoverableEvents(t *testing.T) {
	_, consumer, _ := newTestWorker(t)

	// 脏 JSON 与未知状态都直接跳过，不进入重试
	if result := consumer.deliver(t, mq.TopicMediaProcessed, []byte("{broken")); result != mq.ConsumeSuccess {
		t.Fatalf("malformed event must be skipped, got %d", result)
	}

	body, _ := json.Marshal(MediaEvent{WorkoutID: 1, Status: "melted"})
	if result := consumer.deliver(t, mq.TopicMediaProcessed, body); result != mq.ConsumeSuccess {
		t.Fatalf("unknown status must be skipped, got %d", result)
	}

	// 目标训练课不存在的事件视为过期，同样跳过
	body, _ = json.Marshal(MediaEvent{WorkoutID: 424242, Status: string(models.MediaStatusReady)})
	if result := consumer.deliver(t, mq.TopicMediaProcessed, body); result != mq.ConsumeSuccess {
		t.Fatalf("stale event must be skipped, got %d", result)
	}
}
