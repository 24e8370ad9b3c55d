package logger

import (
	"context"
	"os"

	"github.com/fitgo/fit-go-core/errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

/* ========================================================================
 * Logger - 统一日志组件
 * ========================================================================
 * 职责: 提供结构化日志能力，支持 JSON / Console 格式
 * 技术: Uber Zap + Lumberjack（文件轮转）
 * ======================================================================== */

// Config Logger 配置
type Config struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // 空 / "stdout" 输出到标准输出，否则视为文件路径

	// 文件输出时的轮转配置（Lumberjack）
	MaxSizeMB  int `yaml:"max_size_mb"`  // 单文件最大体积，默认 100
	MaxBackups int `yaml:"max_backups"`  // 保留的旧文件数，默认 5
	MaxAgeDays int `yaml:"max_age_days"` // 旧文件最长保留天数，默认 30
}

// Logger 封装 Zap Logger
type Logger struct {
	*zap.Logger
}

// ValidateConfig 校验日志配置
func ValidateConfig(cfg Config) error {
	if cfg.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return errors.Wrapf(errors.ErrCodeConfig, err, "invalid log level: %q", cfg.Level)
		}
	}
	switch cfg.Format {
	case "", "json", "console":
	default:
		return errors.Wrapf(errors.ErrCodeConfig, nil, "invalid log format: %q", cfg.Format)
	}
	return nil
}

// NewNop 返回不输出任何日志的 Logger（测试用）
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// NewLogger 初始化 Logger
func NewLogger(cfg Config) *Logger {
	// 解析日志级别
	level := zap.InfoLevel
	if cfg.Level != "" {
		_ = level.UnmarshalText([]byte(cfg.Level))
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	// 根据格式选择编码器
	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	// 配置输出: stdout 或带轮转的文件
	var writer zapcore.WriteSyncer
	if cfg.Output == "" || cfg.Output == "stdout" {
		writer = zapcore.AddSync(os.Stdout)
	} else {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		maxBackups := cfg.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 5
		}
		maxAge := cfg.MaxAgeDays
		if maxAge <= 0 {
			maxAge = 30
		}
		writer = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Output,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     maxAge,
			Compress:   true,
		})
	}

	core := zapcore.NewCore(
		encoder,
		writer,
		level,
	)

	logger := zap.New(core, zap.AddCaller())
	return &Logger{Logger: logger}
}

// WithContext 从 Context 提取 TraceID (后续实现) 并注入 Logger
func (l *Logger) WithContext(ctx context.Context) *zap.Logger {
	return l.Logger
}
