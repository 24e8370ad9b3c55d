package http

import (
	"context"
	"fmt"
	"time"

	"github.com/fitgo/fit-go-core/database/router"
	"github.com/fitgo/fit-go-core/logger"
	"github.com/fitgo/fit-go-core/metrics"

	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

/* ========================================================================
 * HTTP Server - Fiber v3 HTTP 服务器
 * ========================================================================
 * 职责: 业务路由承载，健康检查，指标暴露
 * 就绪探针逐角色探测数据库连接：任何一条角色通道断开都视为未就绪，
 * 否则部分主体的请求会在运行期路由失败
 * ======================================================================== */

// Config HTTP 服务器配置
type Config struct {
	Port               int           `yaml:"port"`
	Host               string        `yaml:"host"`
	AppName            string        `yaml:"app_name"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	IdleTimeout        time.Duration `yaml:"idle_timeout"`
	HealthCheckTimeout time.Duration `yaml:"health_check_timeout"`

	Listen ListenOptions `yaml:"listen"`
}

// ListenOptions 监听相关配置
type ListenOptions struct {
	// 是否禁用启动消息，默认 false
	DisableStartupMessage bool `yaml:"disable_startup_message"`

	// 监听网络类型（tcp, tcp4, tcp6），默认 tcp4
	ListenerNetwork string `yaml:"listener_network"`

	// TLS 证书与私钥文件路径，两者齐备时启用 TLS
	CertFile    string `yaml:"cert_file"`
	CertKeyFile string `yaml:"cert_key_file"`

	// mTLS 客户端 CA 文件路径，配置后强制校验客户端证书
	CertClientFile string `yaml:"cert_client_file"`

	// 优雅关闭超时时间，零值使用 Fiber 默认的 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// TLS 最低版本，可选值: 771 (TLS 1.2), 772 (TLS 1.3)
	TLSMinVersion uint16 `yaml:"tls_min_version"`
}

type ServerParams struct {
	fx.In
	Lc     fx.Lifecycle
	Config Config
	Logger *logger.Logger

	// Router 就绪探针逐角色 ping，可选（纯测试装配可缺省）
	Router *router.Router `optional:"true"`

	// ErrorHandler 统一错误响应格式
	ErrorHandler fiber.ErrorHandler `optional:"true"`
}

// NewHTTPServer 创建 HTTP 服务器并注册生命周期
func NewHTTPServer(p ServerParams) *fiber.App {
	cfg := p.Config
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 120 * time.Second
	}
	if cfg.AppName == "" {
		cfg.AppName = "fit-go-core"
	}
	if cfg.HealthCheckTimeout <= 0 {
		cfg.HealthCheckTimeout = 2 * time.Second
	}

	appConfig := fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	if p.ErrorHandler != nil {
		appConfig.ErrorHandler = p.ErrorHandler
	}

	app := fiber.New(appConfig)

	// handler panic 不允许带崩整个进程
	app.Use(recoverer.New(recoverer.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			p.Logger.Error("panic recovered",
				zap.Any("error", e),
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
				zap.String("ip", c.IP()),
			)
		},
	}))

	registerHealthEndpoints(app, p.Router, cfg.HealthCheckTimeout)
	metrics.RegisterMetricsEndpoint(app)

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
			listenConfig := buildListenConfig(cfg.Listen)

			// 先手工绑定端口：绑定失败要让 fx 启动失败，
			// 而不是在 goroutine 里静默退出
			listener, err := createListener(addr, listenConfig)
			if err != nil {
				return fmt.Errorf("failed to bind to %s: %w", addr, err)
			}

			errChan := make(chan error, 1)
			go func() {
				p.Logger.Info("starting HTTP server", zap.String("addr", addr))
				if err := app.Listener(listener, listenConfig); err != nil {
					p.Logger.Error("HTTP server failed", zap.Error(err))
					errChan <- err
				}
			}()

			select {
			case err := <-errChan:
				return err
			case <-ctx.Done():
				return ctx.Err()
			default:
				return nil
			}
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("stopping HTTP server")
			return app.ShutdownWithContext(ctx)
		},
	})

	return app
}

// buildListenConfig 把可序列化的监听配置翻译成 Fiber ListenConfig
func buildListenConfig(opts ListenOptions) fiber.ListenConfig {
	config := fiber.ListenConfig{
		DisableStartupMessage: opts.DisableStartupMessage,
		CertFile:              opts.CertFile,
		CertKeyFile:           opts.CertKeyFile,
		CertClientFile:        opts.CertClientFile,
	}

	config.ListenerNetwork = opts.ListenerNetwork
	if config.ListenerNetwork == "" {
		config.ListenerNetwork = "tcp4"
	}
	if opts.ShutdownTimeout > 0 {
		config.ShutdownTimeout = opts.ShutdownTimeout
	}
	if opts.TLSMinVersion > 0 {
		config.TLSMinVersion = opts.TLSMinVersion
	}

	return config
}

/* ========================================================================
 * Health Check Endpoints
 * ========================================================================
 * /healthz - 存活探针，进程能响应即 200
 * /readyz  - 就绪探针，逐角色 ping 数据库连接
 * ======================================================================== */

func registerHealthEndpoints(app *fiber.App, rt *router.Router, timeout time.Duration) {
	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	app.Get("/readyz", func(c fiber.Ctx) error {
		checks := make(map[string]string)
		healthy := true

		if rt != nil {
			ctx, cancel := context.WithTimeout(c.Context(), timeout)
			defer cancel()
			for role, err := range rt.Ping(ctx) {
				name := "db:" + string(role)
				if err != nil {
					checks[name] = "error: " + err.Error()
					healthy = false
				} else {
					checks[name] = "ok"
				}
			}
		}

		status := "ok"
		statusCode := fiber.StatusOK
		if !healthy {
			status = "unhealthy"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
			"checks": checks,
		})
	})
}
