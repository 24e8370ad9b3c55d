package middleware

import (
	"fmt"
	"time"

	"github.com/fitgo/fit-go-core/response"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

/* ========================================================================
 * Rate Limit - 请求限流
 * ========================================================================
 * 职责: 按调用方限制请求速率
 * 配额键优先用认证后的主体（教练各自一份配额），匿名请求退回来源 IP；
 * 因此限流必须装在认证中间件之后
 * ======================================================================== */

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// Limit 周期内允许的请求数，<=0 使用默认值
	Limit int64 `yaml:"limit"`
	// Period 配额周期，<=0 使用默认值
	Period time.Duration `yaml:"period"`
}

const (
	defaultRateLimit  = 1000
	defaultRatePeriod = time.Second
)

// RateLimiter 主体级请求限流器
type RateLimiter struct {
	limiter *limiter.Limiter
}

// NewRateLimiter 创建限流器
// client 非 nil 时配额存 Redis，多实例共享；nil 退回进程内存储
func NewRateLimiter(client *redis.Client, cfg RateLimitConfig) (*RateLimiter, error) {
	rate := limiter.Rate{
		Limit:  cfg.Limit,
		Period: cfg.Period,
	}
	if rate.Limit <= 0 {
		rate.Limit = defaultRateLimit
	}
	if rate.Period <= 0 {
		rate.Period = defaultRatePeriod
	}

	var store limiter.Store
	if client != nil {
		s, err := redisstore.NewStore(client)
		if err != nil {
			return nil, err
		}
		store = s
	} else {
		store = memory.NewStore()
	}

	return &RateLimiter{limiter: limiter.New(store, rate)}, nil
}

// Handle 返回限流中间件
func (r *RateLimiter) Handle() fiber.Handler {
	return func(c fiber.Ctx) error {
		quota, err := r.limiter.Get(c.Context(), rateLimitKey(c))
		if err != nil {
			return response.ErrorWithCode(c, fiber.StatusInternalServerError, fmt.Errorf("rate limit check failed: %w", err))
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", quota.Limit))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", quota.Remaining))

		if quota.Reached {
			return response.ErrorWithCode(c, fiber.StatusTooManyRequests, fmt.Errorf("too many requests"))
		}
		return c.Next()
	}
}

// rateLimitKey 配额归属
// 外部系统共享一份配额，已认证主体各自一份，匿名请求按来源 IP
func rateLimitKey(c fiber.Ctx) string {
	if p, ok := PrincipalFromFiber(c); ok {
		if p.IsExternal {
			return "external"
		}
		return fmt.Sprintf("%s:%d", p.Role, p.ID)
	}
	return "ip:" + c.IP()
}
