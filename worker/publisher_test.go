package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/fitgo/fit-go-core/errors"
	"github.com/fitgo/fit-go-core/logger"
	"github.com/fitgo/fit-go-core/models"
	"github.com/fitgo/fit-go-core/mq"
	"github.com/fitgo/fit-go-core/repository"
)

// fakeProducer 记录最近一次同步发送的消息
type fakeProducer struct {
	sent *mq.Message
	err  error
}

func (f *fakeProducer) SendSync(ctx context.Context, msg *mq.Message) (*mq.SendResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = msg
	return &mq.SendResult{MsgID: "msg-1", Topic: msg.Topic, Status: mq.SendStatusOK}, nil
}

func (f *fakeProducer) SendAsync(ctx context.Context, msg *mq.Message, callback mq.SendCallback) error {
	return nil
}

func (f *fakeProducer) Close() error { return nil }

func TestMediaPublisherSubmit(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewMediaPublisher(producer, logger.NewNop())

	workout := &models.Workout{
		BaseModel: repository.BaseModel{ID: 42},
		MediaKey:  "01J0WORKOUTMEDIA0000000000",
	}
	msgID, err := pub.Submit(context.Background(), workout)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if msgID != "msg-1" {
		t.Errorf("msg id = %q, want msg-1", msgID)
	}

	msg := producer.sent
	if msg == nil {
		t.Fatal("no message sent")
	}
	if msg.Topic != mq.TopicMediaSubmitted {
		t.Errorf("topic = %q, want %q", msg.Topic, mq.TopicMediaSubmitted)
	}
	if msg.Key != workout.MediaKey {
		t.Errorf("key = %q, want media key %q", msg.Key, workout.MediaKey)
	}
	if got := msg.Properties["WORKOUT_ID"]; got != "42" {
		t.Errorf("WORKOUT_ID property = %q, want 42", got)
	}

	var event MediaSubmission
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if event.WorkoutID != 42 || event.MediaKey != workout.MediaKey {
		t.Errorf("event = %+v", event)
	}
}

func TestMediaPublisherRejectsMissingMedia(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewMediaPublisher(producer, logger.NewNop())

	if _, err := pub.Submit(context.Background(), &models.Workout{BaseModel: repository.BaseModel{ID: 7}}); !errors.IsFailedPrecondition(err) {
		t.Errorf("empty media key: err = %v, want failed precondition", err)
	}
	if _, err := pub.Submit(context.Background(), nil); !errors.IsFailedPrecondition(err) {
		t.Errorf("nil workout: err = %v, want failed precondition", err)
	}
	if producer.sent != nil {
		t.Error("message sent despite missing media")
	}
}
