package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/IBM/sarama"

	"github.com/fitgo/fit-go-core/mq"
)

/* ========================================================================
 * Sarama Config - Sarama 配置装配
 * ========================================================================
 * 职责: 把统一 MQ 配置翻译成 sarama 配置
 * 连接层（版本/SASL/TLS）生产者和消费者共用同一套装配逻辑
 * ======================================================================== */

var acksModes = map[string]sarama.RequiredAcks{
	"none":   sarama.NoResponse,
	"leader": sarama.WaitForLocal,
	"all":    sarama.WaitForAll,
}

var compressionCodecs = map[string]sarama.CompressionCodec{
	"gzip":   sarama.CompressionGZIP,
	"snappy": sarama.CompressionSnappy,
	"lz4":    sarama.CompressionLZ4,
	"zstd":   sarama.CompressionZSTD,
}

// baseSaramaConfig 装配两端共用的连接层配置
func baseSaramaConfig(cfg *mq.KafkaConfig) (*sarama.Config, error) {
	sc := sarama.NewConfig()

	if cfg.Version != "" {
		v, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("invalid kafka version %q: %w", cfg.Version, err)
		}
		sc.Version = v
	}

	if cfg.SASL.Enable {
		applySASL(sc, cfg.SASL)
	}

	if cfg.TLS.Enable {
		tlsCfg, err := clientTLS(cfg.TLS)
		if err != nil {
			return nil, err
		}
		sc.Net.TLS.Enable = true
		sc.Net.TLS.Config = tlsCfg
	}

	return sc, nil
}

func applySASL(sc *sarama.Config, cfg mq.KafkaSASLConfig) {
	sc.Net.SASL.Enable = true
	sc.Net.SASL.User = cfg.Username
	sc.Net.SASL.Password = cfg.Password

	switch cfg.Mechanism {
	case "SCRAM-SHA-256":
		sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &XDGSCRAMClient{HashGeneratorFcn: SHA256}
		}
	case "SCRAM-SHA-512":
		sc.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		sc.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &XDGSCRAMClient{HashGeneratorFcn: SHA512}
		}
	default:
		sc.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	}
}

func clientTLS(cfg mq.KafkaTLSConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{InsecureSkipVerify: cfg.Insecure}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read kafka CA file: %w", err)
		}
		pool := x509.NewCertPool()
		pool.AppendCertsFromPEM(pem)
		tlsCfg.RootCAs = pool
	}

	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load kafka client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}

// producerSaramaConfig 在连接层配置之上叠加生产者参数
func producerSaramaConfig(cfg *mq.KafkaConfig) (*sarama.Config, error) {
	sc, err := baseSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}

	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Retry.Max = cfg.Producer.RetryMax
	sc.Producer.Timeout = cfg.Producer.Timeout

	if acks, ok := acksModes[cfg.Producer.RequiredAcks]; ok {
		sc.Producer.RequiredAcks = acks
	} else {
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	}
	if codec, ok := compressionCodecs[cfg.Producer.Compression]; ok {
		sc.Producer.Compression = codec
	}
	if cfg.Producer.MaxMessageBytes > 0 {
		sc.Producer.MaxMessageBytes = cfg.Producer.MaxMessageBytes
	}

	// 幂等生产要求单飞行请求，否则 broker 端去重失效
	sc.Producer.Idempotent = cfg.Producer.Idempotent
	if cfg.Producer.Idempotent {
		sc.Net.MaxOpenRequests = 1
	}

	return sc, nil
}

// consumerSaramaConfig 在连接层配置之上叠加消费者组参数
func consumerSaramaConfig(cfg *mq.KafkaConfig) (*sarama.Config, error) {
	sc, err := baseSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}

	sc.Consumer.Return.Errors = true

	if cfg.Consumer.InitialOffset == "oldest" {
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	sc.Consumer.Offsets.AutoCommit.Enable = cfg.Consumer.AutoCommit
	if cfg.Consumer.AutoCommitInterval > 0 {
		sc.Consumer.Offsets.AutoCommit.Interval = cfg.Consumer.AutoCommitInterval
	}
	if cfg.Consumer.SessionTimeout > 0 {
		sc.Consumer.Group.Session.Timeout = cfg.Consumer.SessionTimeout
	}
	if cfg.Consumer.HeartbeatInterval > 0 {
		sc.Consumer.Group.Heartbeat.Interval = cfg.Consumer.HeartbeatInterval
	}
	if cfg.Consumer.FetchMin > 0 {
		sc.Consumer.Fetch.Min = cfg.Consumer.FetchMin
	}
	if cfg.Consumer.FetchMax > 0 {
		sc.Consumer.Fetch.Max = cfg.Consumer.FetchMax
	}
	if cfg.Consumer.FetchDefault > 0 {
		sc.Consumer.Fetch.Default = cfg.Consumer.FetchDefault
	}
	if cfg.Consumer.MaxWaitTime > 0 {
		sc.Consumer.MaxWaitTime = cfg.Consumer.MaxWaitTime
	}
	if cfg.Consumer.MaxProcessingTime > 0 {
		sc.Consumer.MaxProcessingTime = cfg.Consumer.MaxProcessingTime
	}

	return sc, nil
}
