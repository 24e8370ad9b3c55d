package rocketmq

import (
	"context"
	"fmt"

	"github.com/apache/rocketmq-client-go/v2"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"go.uber.org/zap"
)

/* ========================================================================
 * RocketMQ Producer - 原生 API 封装
 * ========================================================================
 * 职责: 提供 RocketMQ 原生 Producer API，供需要 Tag/延迟/顺序消息的场景直用
 * 技术: apache/rocketmq-client-go/v2
 * ======================================================================== */

// Producer RocketMQ 生产者封装
type Producer struct {
	producer rocketmq.Producer
	logger   *zap.Logger
	config   *Config
}

// NewProducer 创建并启动生产者
func NewProducer(cfg *Config, logger *zap.Logger) (*Producer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("rocketmq config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// 创建生产者实例
	p, err := rocketmq.NewProducer(buildProducerOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	// 启动生产者
	if err := p.Start(); err != nil {
		return nil, fmt.Errorf("failed to start producer: %w", err)
	}

	logger.Info("RocketMQ producer started",
		zap.String("group", cfg.Producer.GroupName),
		zap.Strings("name_servers", cfg.NameServers),
	)

	return &Producer{
		producer: p,
		logger:   logger,
		config:   cfg,
	}, nil
}

// SendSync 同步发送消息
func (p *Producer) SendSync(ctx context.Context, topic string, body []byte, opts ...MessageOption) (*primitive.SendResult, error) {
	msg, err := p.newMessage(topic, body, opts)
	if err != nil {
		return nil, err
	}

	result, err := p.producer.SendSync(ctx, msg)
	if err != nil {
		p.logger.Error("failed to send message",
			zap.String("topic", topic),
			zap.Int("body_size", len(body)),
			zap.Error(err),
		)
		return nil, err
	}

	p.logger.Debug("message sent",
		zap.String("topic", topic),
		zap.String("msg_id", result.MsgID),
		zap.Int("status", int(result.Status)),
	)

	return result, nil
}

// SendAsync 异步发送消息
func (p *Producer) SendAsync(ctx context.Context, topic string, body []byte, callback func(context.Context, *primitive.SendResult, error), opts ...MessageOption) error {
	msg, err := p.newMessage(topic, body, opts)
	if err != nil {
		return err
	}

	// callback 为 nil 时只记录失败
	if callback == nil {
		callback = func(ctx context.Context, result *primitive.SendResult, err error) {
			if err != nil {
				p.logger.Error("async message send failed",
					zap.String("topic", topic),
					zap.Error(err),
				)
			}
		}
	}

	if err := p.producer.SendAsync(ctx, callback, msg); err != nil {
		p.logger.Error("failed to send async message",
			zap.String("topic", topic),
			zap.Int("body_size", len(body)),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// SendOneWay 单向发送消息（不关心结果）
func (p *Producer) SendOneWay(ctx context.Context, topic string, body []byte, opts ...MessageOption) error {
	msg, err := p.newMessage(topic, body, opts)
	if err != nil {
		return err
	}

	if err := p.producer.SendOneWay(ctx, msg); err != nil {
		p.logger.Error("failed to send oneway message",
			zap.String("topic", topic),
			zap.Int("body_size", len(body)),
			zap.Error(err),
		)
		return err
	}

	return nil
}

// Shutdown 关闭生产者
func (p *Producer) Shutdown() error {
	if err := p.producer.Shutdown(); err != nil {
		p.logger.Error("failed to shutdown producer", zap.Error(err))
		return err
	}
	p.logger.Info("RocketMQ producer shutdown")
	return nil
}

// buildProducerOptions 由配置构造生产者选项，普通生产者与事务生产者共用
func buildProducerOptions(cfg *Config) []producer.Option {
	nameServers := make([]string, len(cfg.NameServers))
	copy(nameServers, cfg.NameServers)

	opts := []producer.Option{
		producer.WithNameServer(nameServers),
		producer.WithGroupName(cfg.Producer.GroupName),
		producer.WithRetry(cfg.Producer.RetryTimesOnFailed),
		producer.WithSendMsgTimeout(cfg.Producer.SendMsgTimeout),
	}
	if cfg.Namespace != "" {
		opts = append(opts, producer.WithNamespace(cfg.Namespace))
	}
	if cfg.InstanceName != "" {
		opts = append(opts, producer.WithInstanceName(cfg.InstanceName))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, producer.WithCredentials(primitive.Credentials{
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		}))
	}
	return opts
}

// newMessage 构造消息并应用选项，超出大小限制直接拒绝
func (p *Producer) newMessage(topic string, body []byte, opts []MessageOption) (*primitive.Message, error) {
	maxSize := p.config.Producer.MaxMessageSize
	if maxSize <= 0 {
		maxSize = 4 * 1024 * 1024 // 默认 4MB
	}
	if len(body) > maxSize {
		return nil, fmt.Errorf("message size %d bytes exceeds limit %d bytes", len(body), maxSize)
	}

	msg := primitive.NewMessage(topic, body)
	for _, opt := range opts {
		opt(msg)
	}
	return msg, nil
}
