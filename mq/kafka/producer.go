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
 * Kafka Producer - Kafka 消息生产者
 * ========================================================================
 * 职责: 以 sarama 实现 mq.Producer
 * 媒体提交事件用消息键定分区，同一媒体的事件保持顺序
 * ======================================================================== */

const tagHeader = "X-Tag"

func init() {
	mq.RegisterProducerFactory(mq.TypeKafka, NewProducerAdapter)
}

// ProducerAdapter 同时持有同步与异步两条发送通道
type ProducerAdapter struct {
	syncProd  sarama.SyncProducer
	asyncProd sarama.AsyncProducer
	log       *zap.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewProducerAdapter 创建 Kafka 生产者
func NewProducerAdapter(cfg *mq.Config, log *zap.Logger) (mq.Producer, error) {
	if cfg.Kafka == nil {
		return nil, fmt.Errorf("kafka config is required")
	}

	sc, err := producerSaramaConfig(cfg.Kafka)
	if err != nil {
		return nil, err
	}

	syncProd, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka sync producer: %w", err)
	}
	asyncProd, err := sarama.NewAsyncProducer(cfg.Kafka.Brokers, sc)
	if err != nil {
		syncProd.Close()
		return nil, fmt.Errorf("create kafka async producer: %w", err)
	}

	p := &ProducerAdapter{syncProd: syncProd, asyncProd: asyncProd, log: log}

	// Return.Successes/Errors 打开后两个通道都必须被消费，否则发送阻塞
	p.wg.Add(2)
	go p.drainSuccesses()
	go p.drainErrors()

	log.Info("kafka producer started", zap.Strings("brokers", cfg.Kafka.Brokers))
	return p, nil
}

// drainSuccesses 把异步发送结果回投给消息上挂的回调
func (p *ProducerAdapter) drainSuccesses() {
	defer p.wg.Done()
	for msg := range p.asyncProd.Successes() {
		cb, _ := msg.Metadata.(mq.SendCallback)
		if cb == nil {
			continue
		}
		cb(&mq.SendResult{
			MsgID:     kafkaMessageID(msg.Topic, msg.Partition, msg.Offset),
			Topic:     msg.Topic,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Status:    mq.SendStatusOK,
		}, nil)
	}
}

func (p *ProducerAdapter) drainErrors() {
	defer p.wg.Done()
	for perr := range p.asyncProd.Errors() {
		if cb, ok := perr.Msg.Metadata.(mq.SendCallback); ok && cb != nil {
			cb(nil, perr.Err)
			continue
		}
		p.log.Error("kafka async send failed",
			zap.String("topic", perr.Msg.Topic), zap.Error(perr.Err))
	}
}

// SendSync 同步发送，返回分区与偏移量拼出的消息 ID
func (p *ProducerAdapter) SendSync(ctx context.Context, msg *mq.Message) (*mq.SendResult, error) {
	if err := p.ensureOpen(); err != nil {
		return nil, err
	}

	partition, offset, err := p.syncProd.SendMessage(toSaramaMessage(msg))
	if err != nil {
		p.log.Error("kafka send failed", zap.String("topic", msg.Topic), zap.Error(err))
		return nil, err
	}

	return &mq.SendResult{
		MsgID:     kafkaMessageID(msg.Topic, partition, offset),
		Topic:     msg.Topic,
		Partition: partition,
		Offset:    offset,
		Status:    mq.SendStatusOK,
	}, nil
}

// SendAsync 异步发送
// sarama 没有单消息回调，回调挂在 Metadata 上由 drain goroutine 回投
func (p *ProducerAdapter) SendAsync(ctx context.Context, msg *mq.Message, callback mq.SendCallback) error {
	if err := p.ensureOpen(); err != nil {
		return err
	}

	km := toSaramaMessage(msg)
	km.Metadata = callback

	select {
	case p.asyncProd.Input() <- km:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close 关闭生产者，等待后台 goroutine 排干两个结果通道
func (p *ProducerAdapter) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	// asyncProd.Close 会在排干后关闭 Successes/Errors 通道
	asyncErr := p.asyncProd.Close()
	p.wg.Wait()
	syncErr := p.syncProd.Close()

	if asyncErr != nil {
		return fmt.Errorf("close kafka async producer: %w", asyncErr)
	}
	if syncErr != nil {
		return fmt.Errorf("close kafka sync producer: %w", syncErr)
	}

	p.log.Info("kafka producer closed")
	return nil
}

func (p *ProducerAdapter) ensureOpen() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("kafka producer is closed")
	}
	return nil
}

func kafkaMessageID(topic string, partition int32, offset int64) string {
	return fmt.Sprintf("%s-%d-%d", topic, partition, offset)
}

func toSaramaMessage(msg *mq.Message) *sarama.ProducerMessage {
	km := &sarama.ProducerMessage{
		Topic:     msg.Topic,
		Value:     sarama.ByteEncoder(msg.Body),
		Timestamp: time.Now(),
	}
	if msg.Key != "" {
		km.Key = sarama.StringEncoder(msg.Key)
	}
	for k, v := range msg.Properties {
		km.Headers = append(km.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	// Kafka 没有原生 tag，降级为保留 header
	if msg.Tag != "" {
		km.Headers = append(km.Headers, sarama.RecordHeader{Key: []byte(tagHeader), Value: []byte(msg.Tag)})
	}
	return km
}
