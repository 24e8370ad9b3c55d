package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/fitgo/fit-go-core/mq"
)

/* ========================================================================
 * Kafka Consumer - Kafka 消息消费者
 * ========================================================================
 * 职责: 以 sarama 消费者组实现 mq.Consumer
 * 处理失败不提交位移，依赖重投与处理端幂等保证不丢
 * ======================================================================== */

const (
	handlerMaxAttempts = 3
	handlerRetryDelay  = 100 * time.Millisecond
)

func init() {
	mq.RegisterConsumerFactory(mq.TypeKafka, NewConsumerAdapter)
}

// ConsumerAdapter 消费者组适配器
type ConsumerAdapter struct {
	group  sarama.ConsumerGroup
	log    *zap.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	handlers map[string]mq.MessageHandler
	topics   []string
	ready    chan struct{}
}

// NewConsumerAdapter 创建 Kafka 消费者
func NewConsumerAdapter(cfg *mq.Config, log *zap.Logger) (mq.Consumer, error) {
	if cfg.Kafka == nil {
		return nil, fmt.Errorf("kafka config is required")
	}

	sc, err := consumerSaramaConfig(cfg.Kafka)
	if err != nil {
		return nil, err
	}

	group, err := sarama.NewConsumerGroup(cfg.Kafka.Brokers, cfg.Kafka.Consumer.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}

	log.Info("kafka consumer created",
		zap.String("group", cfg.Kafka.Consumer.GroupID),
		zap.Strings("brokers", cfg.Kafka.Brokers))

	return &ConsumerAdapter{
		group:    group,
		log:      log,
		handlers: make(map[string]mq.MessageHandler),
		ready:    make(chan struct{}),
	}, nil
}

// Subscribe 订阅主题，必须在 Start 之前完成
func (c *ConsumerAdapter) Subscribe(topic string, handler mq.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	c.topics = append(c.topics, topic)
	return nil
}

// Start 启动消费循环，阻塞到首次分区分配完成
func (c *ConsumerAdapter) Start() error {
	c.mu.RLock()
	topics := c.topics
	c.mu.RUnlock()
	if len(topics) == 0 {
		return fmt.Errorf("no topics subscribed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			// Consume 在每次 rebalance 后返回，需要循环重入
			if err := c.group.Consume(ctx, topics, (*groupHandler)(c)); err != nil && ctx.Err() == nil {
				c.log.Error("kafka consume error", zap.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
			c.mu.Lock()
			c.ready = make(chan struct{})
			c.mu.Unlock()
		}
	}()

	<-c.readyCh()
	c.log.Info("kafka consumer started", zap.Strings("topics", topics))
	return nil
}

// Close 停止消费并关闭消费者组
func (c *ConsumerAdapter) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	if err := c.group.Close(); err != nil {
		return fmt.Errorf("close kafka consumer group: %w", err)
	}
	c.log.Info("kafka consumer closed")
	return nil
}

func (c *ConsumerAdapter) readyCh() chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

func (c *ConsumerAdapter) handlerFor(topic string) (mq.MessageHandler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[topic]
	return h, ok
}

// =============================================================================
// sarama.ConsumerGroupHandler
// =============================================================================

type groupHandler ConsumerAdapter

func (h *groupHandler) adapter() *ConsumerAdapter { return (*ConsumerAdapter)(h) }

func (h *groupHandler) Setup(session sarama.ConsumerGroupSession) error {
	close(h.adapter().readyCh())
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	a := h.adapter()
	handler, ok := a.handlerFor(claim.Topic())
	if !ok {
		a.log.Warn("no handler for topic", zap.String("topic", claim.Topic()))
		return nil
	}

	for {
		select {
		case msg, open := <-claim.Messages():
			if !open {
				return nil
			}
			if a.process(session, handler, msg) {
				session.MarkMessage(msg, "")
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

// process 带退避重试地调用业务 handler，返回是否应提交位移
// 重试耗尽后不提交，消息随重投再来，处理端需幂等
func (a *ConsumerAdapter) process(session sarama.ConsumerGroupSession, handler mq.MessageHandler, msg *sarama.ConsumerMessage) bool {
	consumed := fromSaramaMessage(msg)

	var lastErr error
	for attempt := 1; attempt <= handlerMaxAttempts; attempt++ {
		result, err := handler(session.Context(), []*mq.ConsumedMessage{consumed})
		if err == nil && result != mq.ConsumeRetryLater {
			return true
		}
		lastErr = err

		a.log.Warn("message handling failed",
			zap.String("topic", msg.Topic),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-session.Context().Done():
			return false
		case <-time.After(handlerRetryDelay * time.Duration(attempt)):
		}
	}

	a.log.Error("message handling exhausted retries",
		zap.String("topic", msg.Topic),
		zap.Int32("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
		zap.Error(lastErr))
	return false
}

func fromSaramaMessage(msg *sarama.ConsumerMessage) *mq.ConsumedMessage {
	consumed := &mq.ConsumedMessage{
		Topic:      msg.Topic,
		Body:       msg.Value,
		Key:        string(msg.Key),
		MsgID:      kafkaMessageID(msg.Topic, msg.Partition, msg.Offset),
		Offset:     msg.Offset,
		Partition:  msg.Partition,
		BornTime:   msg.Timestamp,
		Properties: make(map[string]string),
	}
	for _, header := range msg.Headers {
		if string(header.Key) == tagHeader {
			consumed.Tag = string(header.Value)
			continue
		}
		consumed.Properties[string(header.Key)] = string(header.Value)
	}
	return consumed
}
