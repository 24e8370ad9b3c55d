package rocketmq

import (
	"context"
	"fmt"
	"time"

	"github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"go.uber.org/zap"

	"github.com/fitgo/fit-go-core/mq"
)

/* ========================================================================
 * RocketMQ Adapter - 统一接口桥接
 * ========================================================================
 * 职责: 把 mq.Producer / mq.Consumer 桥接到本包的原生封装
 * 消息选项（键/Tag/属性/延迟）统一走 MessageOption 翻译
 * ======================================================================== */

func init() {
	mq.RegisterProducerFactory(mq.TypeRocketMQ, NewProducerAdapter)
	mq.RegisterConsumerFactory(mq.TypeRocketMQ, NewConsumerAdapter)
}

// bridgeConfig 把统一 MQ 配置翻译成本包配置
func bridgeConfig(cfg *mq.RocketMQConfig) *Config {
	return &Config{
		NameServers:  cfg.NameServers,
		Namespace:    cfg.Namespace,
		InstanceName: cfg.InstanceName,
		AccessKey:    cfg.AccessKey,
		SecretKey:    cfg.SecretKey,
		Producer: ProducerConfig{
			GroupName:          cfg.Producer.GroupName,
			SendMsgTimeout:     cfg.Producer.SendMsgTimeout,
			RetryTimesOnFailed: cfg.Producer.RetryTimesOnFailed,
			MaxMessageSize:     cfg.Producer.MaxMessageSize,
			CompressLevel:      cfg.Producer.CompressLevel,
		},
		Consumer: ConsumerConfig{
			GroupName:              cfg.Consumer.GroupName,
			Model:                  cfg.Consumer.Model,
			ConsumeFromWhere:       cfg.Consumer.ConsumeFromWhere,
			ConsumeMessageBatchMax: cfg.Consumer.ConsumeMessageBatchMax,
			PullBatchSize:          cfg.Consumer.PullBatchSize,
			PullInterval:           cfg.Consumer.PullInterval,
			MaxReconsumeTimes:      cfg.Consumer.MaxReconsumeTimes,
		},
	}
}

// =============================================================================
// Producer 桥接
// =============================================================================

// ProducerAdapter 把统一消息翻译成原生发送
type ProducerAdapter struct {
	inner *Producer
}

// NewProducerAdapter 创建并启动 RocketMQ 生产者
func NewProducerAdapter(cfg *mq.Config, log *zap.Logger) (mq.Producer, error) {
	if cfg.RocketMQ == nil {
		return nil, fmt.Errorf("rocketmq config is required")
	}
	inner, err := NewProducer(bridgeConfig(cfg.RocketMQ), log)
	if err != nil {
		return nil, err
	}
	return &ProducerAdapter{inner: inner}, nil
}

// SendSync 同步发送消息
func (p *ProducerAdapter) SendSync(ctx context.Context, msg *mq.Message) (*mq.SendResult, error) {
	result, err := p.inner.SendSync(ctx, msg.Topic, msg.Body, messageOptions(msg)...)
	if err != nil {
		return nil, err
	}
	return toSendResult(result), nil
}

// SendAsync 异步发送消息
func (p *ProducerAdapter) SendAsync(ctx context.Context, msg *mq.Message, callback mq.SendCallback) error {
	return p.inner.SendAsync(ctx, msg.Topic, msg.Body,
		func(ctx context.Context, result *primitive.SendResult, err error) {
			if callback != nil {
				callback(toSendResult(result), err)
			}
		}, messageOptions(msg)...)
}

// Close 关闭生产者
func (p *ProducerAdapter) Close() error {
	return p.inner.Shutdown()
}

// messageOptions 翻译统一消息上的发送选项
// 消息键同时作为 sharding key，保证同一媒体的事件顺序
func messageOptions(msg *mq.Message) []MessageOption {
	var opts []MessageOption
	if msg.Key != "" {
		opts = append(opts, WithKey(msg.Key), WithShardingKey(msg.Key))
	}
	if msg.Tag != "" {
		opts = append(opts, WithTag(msg.Tag))
	}
	if len(msg.Properties) > 0 {
		opts = append(opts, WithProperties(msg.Properties))
	}
	if msg.DelayLevel > 0 {
		opts = append(opts, WithDelayTimeLevel(msg.DelayLevel))
	}
	return opts
}

func toSendResult(result *primitive.SendResult) *mq.SendResult {
	if result == nil {
		return nil
	}
	return &mq.SendResult{
		MsgID:  result.MsgID,
		Topic:  result.MessageQueue.Topic,
		Status: mq.SendStatus(result.Status),
	}
}

// =============================================================================
// Consumer 桥接
// =============================================================================

// ConsumerAdapter 把原生推送消费翻译成统一 handler
type ConsumerAdapter struct {
	inner *Consumer
}

// NewConsumerAdapter 创建 RocketMQ 消费者
func NewConsumerAdapter(cfg *mq.Config, log *zap.Logger) (mq.Consumer, error) {
	if cfg.RocketMQ == nil {
		return nil, fmt.Errorf("rocketmq config is required")
	}
	inner, err := NewConsumer(bridgeConfig(cfg.RocketMQ), log)
	if err != nil {
		return nil, err
	}
	return &ConsumerAdapter{inner: inner}, nil
}

// Subscribe 订阅主题，不做 Tag 过滤
func (c *ConsumerAdapter) Subscribe(topic string, handler mq.MessageHandler) error {
	return c.inner.Subscribe(topic, consumer.MessageSelector{},
		func(ctx context.Context, msgs ...*primitive.MessageExt) (consumer.ConsumeResult, error) {
			batch := make([]*mq.ConsumedMessage, len(msgs))
			for i, m := range msgs {
				batch[i] = toConsumedMessage(m)
			}

			result, err := handler(ctx, batch)
			if err != nil || result == mq.ConsumeRetryLater {
				return consumer.ConsumeRetryLater, err
			}
			return consumer.ConsumeSuccess, nil
		})
}

// Start 启动消费者
func (c *ConsumerAdapter) Start() error {
	return c.inner.Start()
}

// Close 关闭消费者
func (c *ConsumerAdapter) Close() error {
	return c.inner.Shutdown()
}

func toConsumedMessage(m *primitive.MessageExt) *mq.ConsumedMessage {
	return &mq.ConsumedMessage{
		Topic:        m.Topic,
		Body:         m.Body,
		Key:          m.GetKeys(),
		Tag:          m.GetTags(),
		Properties:   m.GetProperties(),
		MsgID:        m.MsgId,
		BornTime:     time.UnixMilli(m.BornTimestamp),
		ReconsumeCnt: m.ReconsumeTimes,
	}
}
