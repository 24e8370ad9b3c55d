package worker

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/fitgo/fit-go-core/errors"
	"github.com/fitgo/fit-go-core/logger"
	"github.com/fitgo/fit-go-core/models"
	"github.com/fitgo/fit-go-core/mq"

	"go.uber.org/zap"
)

/* ========================================================================
 * Media Publisher - 媒体提交发布者
 * ========================================================================
 * 职责: 把待处理的训练课媒体投递给媒体流水线
 * 消息键用媒体对象键，同一媒体的重复提交落在同一分区保序
 * ======================================================================== */

// MediaSubmission 媒体提交事件
type MediaSubmission struct {
	WorkoutID int64  `json:"workout_id,string"`
	MediaKey  string `json:"media_key"`
}

// MediaPublisher 媒体提交发布者
type MediaPublisher struct {
	producer mq.Producer
	log      *logger.Logger
}

// NewMediaPublisher 创建媒体提交发布者
func NewMediaPublisher(producer mq.Producer, log *logger.Logger) *MediaPublisher {
	return &MediaPublisher{producer: producer, log: log}
}

// Submit 发布媒体提交事件
// 没有媒体键的训练课无从处理，直接拒绝
func (p *MediaPublisher) Submit(ctx context.Context, w *models.Workout) (string, error) {
	if w == nil || w.MediaKey == "" {
		return "", errors.New(errors.ErrCodeFailedPrecondition, "workout has no media to process")
	}

	body, err := json.Marshal(MediaSubmission{WorkoutID: w.ID, MediaKey: w.MediaKey})
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, "failed to encode media submission", err)
	}

	msg := mq.NewMessage(mq.TopicMediaSubmitted, body).
		WithKey(w.MediaKey).
		WithProperty("WORKOUT_ID", strconv.FormatInt(w.ID, 10))

	result, err := p.producer.SendSync(ctx, msg)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeUnavailable, "failed to publish media submission", err)
	}

	p.log.Info("media submission published",
		zap.Int64("workout_id", w.ID),
		zap.String("media_key", w.MediaKey),
		zap.String("msg_id", result.MsgID))
	return result.MsgID, nil
}
