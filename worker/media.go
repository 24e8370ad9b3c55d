package worker

import (
	"context"
	"encoding/json"

	"github.com/fitgo/fit-go-core/errors"
	"github.com/fitgo/fit-go-core/logger"
	"github.com/fitgo/fit-go-core/metrics"
	"github.com/fitgo/fit-go-core/models"
	"github.com/fitgo/fit-go-core/mq"
	"github.com/fitgo/fit-go-core/principal"
	"github.com/fitgo/fit-go-core/service"

	"go.uber.org/zap"
)

/* ========================================================================
 * Media Worker - 媒体处理结果消费者
 * ========================================================================
 * 职责: 消费媒体流水线的处理结果事件，回写训练课媒体状态
 * 身份: 以外部系统主体执行，数据库会话身份使用哨兵值，
 *       归属校验豁免（媒体流水线不持有教练身份）
 * 重试: 业务上不可恢复的消息（脏数据/目标不存在）跳过；
 *       基础设施错误交还队列稍后重试
 * ======================================================================== */

// MediaEvent 媒体处理结果事件
type MediaEvent struct {
	WorkoutID int64  `json:"workout_id,string"`
	MediaKey  string `json:"media_key"`
	Status    string `json:"status"`
}

// MediaWorker 媒体结果消费者
type MediaWorker struct {
	consumer mq.Consumer
	workouts *service.WorkoutService
	log      *logger.Logger
}

// NewMediaWorker 创建媒体结果消费者
func NewMediaWorker(consumer mq.Consumer, workouts *service.WorkoutService, log *logger.Logger) *MediaWorker {
	return &MediaWorker{
		consumer: consumer,
		workouts: workouts,
		log:      log,
	}
}

// Start 订阅主题并启动消费
func (w *MediaWorker) Start() error {
	if err := w.consumer.Subscribe(mq.TopicMediaProcessed, w.Handle); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, "failed to subscribe media topic", err)
	}
	return w.consumer.Start()
}

// Close 停止消费
func (w *MediaWorker) Close() error {
	return w.consumer.Close()
}

// Handle 处理一批媒体结果消息
func (w *MediaWorker) Handle(ctx context.Context, msgs []*mq.ConsumedMessage) (mq.ConsumeResult, error) {
	for _, m := range msgs {
		if err := w.handleOne(ctx, m); err != nil {
			return mq.ConsumeRetryLater, err
		}
	}
	return mq.ConsumeSuccess, nil
}

func (w *MediaWorker) handleOne(ctx context.Context, m *mq.ConsumedMessage) error {
	var ev MediaEvent
	if err := json.Unmarshal(m.Body, &ev); err != nil {
		// 脏消息重试不会变好，记录后跳过
		w.log.Warn("malformed media event skipped",
			zap.String("msg_id", m.MsgID),
			zap.Error(err))
		metrics.MediaEventsTotal.WithLabelValues("invalid", "skipped").Inc()
		return nil
	}

	status := models.MediaStatus(ev.Status)
	if !status.Valid() {
		w.log.Warn("media event with unknown status skipped",
			zap.String("msg_id", m.MsgID),
			zap.String("status", ev.Status))
		// 状态串不可控，计数时用固定标签防止标签基数失控
		metrics.MediaEventsTotal.WithLabelValues("invalid", "skipped").Inc()
		return nil
	}

	_, err := w.workouts.UpdateMediaStatus(ctx, principal.External(), ev.WorkoutID, status)
	if err != nil {
		if errors.IsNotFound(err) {
			// 训练课已被删除，事件过期
			w.log.Warn("media event for missing workout skipped",
				zap.String("msg_id", m.MsgID),
				zap.Int64("workout_id", ev.WorkoutID))
			metrics.MediaEventsTotal.WithLabelValues(string(status), "skipped").Inc()
			return nil
		}
		metrics.MediaEventsTotal.WithLabelValues(string(status), "retry").Inc()
		return err
	}

	metrics.MediaEventsTotal.WithLabelValues(string(status), "applied").Inc()
	w.log.Info("workout media status updated",
		zap.Int64("workout_id", ev.WorkoutID),
		zap.String("status", string(status)),
		zap.String("media_key", ev.MediaKey))
	return nil
}
