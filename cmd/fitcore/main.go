package main

import (
	"context"
	"flag"
	"log"

	"github.com/fitgo/fit-go-core/cache"
	"github.com/fitgo/fit-go-core/cache/redis"
	"github.com/fitgo/fit-go-core/conf"
	"github.com/fitgo/fit-go-core/database/identity"
	"github.com/fitgo/fit-go-core/database/router"
	"github.com/fitgo/fit-go-core/logger"
	"github.com/fitgo/fit-go-core/metrics"
	"github.com/fitgo/fit-go-core/middleware"
	"github.com/fitgo/fit-go-core/mq"
	_ "github.com/fitgo/fit-go-core/mq/kafka"    // 注册 Kafka 工厂
	_ "github.com/fitgo/fit-go-core/mq/rocketmq" // 注册 RocketMQ 工厂
	"github.com/fitgo/fit-go-core/service"
	"github.com/fitgo/fit-go-core/shutdown"
	transporthttp "github.com/fitgo/fit-go-core/transport/http"
	"github.com/fitgo/fit-go-core/uow"
	"github.com/fitgo/fit-go-core/validator"
	"github.com/fitgo/fit-go-core/worker"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

/* ========================================================================
 * Fit Core Server - 健身平台核心服务入口
 * ========================================================================
 * 职责: 装配配置、日志、数据库路由、缓存、领域服务、消费者与 HTTP 服务
 * ======================================================================== */

// AppConfig 应用聚合配置
type AppConfig struct {
	Logger   logger.Config        `yaml:"logger"`
	Identity identity.Config      `yaml:"identity"`
	Database router.Config        `yaml:"database"`
	Redis    redis.Config         `yaml:"redis"`
	HTTP     transporthttp.Config `yaml:"http"`
	MQ       *mq.Config           `yaml:"mq"`

	RateLimit middleware.RateLimitConfig `yaml:"rate_limit"`

	Auth struct {
		Gateway middleware.AuthHeaderVerifierConfig `yaml:"gateway"`
		APIKey  middleware.APIKeyConfig             `yaml:"api_key"`
	} `yaml:"auth"`
}

func loadConfig(path, name string) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := conf.NewLoader(path, name, "yaml").Load(cfg); err != nil {
		return nil, err
	}
	if cfg.MQ == nil {
		cfg.MQ = mq.DefaultConfig()
	}
	if err := logger.ValidateConfig(cfg.Logger); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	configPath := flag.String("config-path", "./configs", "配置文件目录")
	configName := flag.String("config-name", "config", "配置文件名（不含扩展名）")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *configName)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	app := fx.New(
		fx.Supply(cfg),
		fx.Provide(
			func(c *AppConfig) logger.Config { return c.Logger },
			func(c *AppConfig) identity.Config { return c.Identity },
			func(c *AppConfig) router.Config { return c.Database },
			func(c *AppConfig) redis.Config { return c.Redis },
			func(c *AppConfig) transporthttp.Config { return c.HTTP },
			func(c *AppConfig) *middleware.AuthHeaderVerifierConfig { return &c.Auth.Gateway },
			func(c *AppConfig) *middleware.APIKeyConfig { return &c.Auth.APIKey },
			func(c *AppConfig) *mq.Config { return c.MQ },
			func(l *logger.Logger) *zap.Logger { return l.Logger },
		),
		fx.Provide(
			logger.NewLogger,
			identity.New,
			validator.New,
			middleware.NewErrorHandler,
			middleware.NewAuthHeaderVerifier,
			middleware.NewAPIKeyAuth,
			transporthttp.NewHTTPServer,
		),
		mq.ConsumerOnlyModule,
		mq.ProducerOnlyModule,
		router.Module,
		cache.Module,
		service.Module,
		uow.Module,
		worker.Module,
		shutdown.Module,

		// 中间件必须先于业务路由注册
		fx.Invoke(registerMiddleware),
		fx.Invoke(transporthttp.RegisterFitnessRoutes),
		fx.Invoke(registerShutdownHooks),

		fx.WithLogger(func(l *logger.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Logger}
		}),
	)

	app.Run()
}

// registerMiddleware 安装全局中间件
// 顺序: 请求指标 -> 网关签名认证 -> API Key 认证（外部主体）-> 限流
// 限流在认证之后，配额才能按主体归属
func registerMiddleware(app *fiber.App, cfg *AppConfig, verifier *middleware.AuthHeaderVerifier, apiKey *middleware.APIKeyAuth, cacheClient *redis.Client, log *logger.Logger) error {
	app.Use(metrics.HTTPMetricsMiddleware(nil))
	app.Use(verifier.Authenticate())
	app.Use(apiKey.Authenticate())

	rl, err := middleware.NewRateLimiter(cacheClient.Raw(), cfg.RateLimit)
	if err != nil {
		return err
	}
	app.Use(rl.Handle())
	return nil
}

func registerShutdownHooks(lc fx.Lifecycle, m *shutdown.Manager, log *logger.Logger) {
	// 消费者与 HTTP 由各自模块的生命周期钩子停止，这里只兜底日志落盘
	m.RegisterHookWithPriority("logger-flush", func(ctx context.Context) error {
		_ = log.Sync()
		return nil
	}, shutdown.PriorityLow)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			m.Shutdown(ctx)
			return nil
		},
	})
}
