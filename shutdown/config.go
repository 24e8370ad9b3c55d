package shutdown

import "time"

/* ========================================================================
 * Shutdown Config - 优雅关停配置
 * ========================================================================
 * 职责: 定义优雅关停的配置结构
 * ======================================================================== */

// 钩子优先级，数值越小越先执行
const (
	PriorityHigh   = 0
	PriorityNormal = 50
	PriorityLow    = 100
)

// Config 优雅关停配置
type Config struct {
	// Timeout 整个关停流程的上限
	// 超过后放弃剩余钩子，让进程退出
	Timeout time.Duration `yaml:"timeout"`

	// HookTimeout 单个钩子的上限，<=0 表示只受 Timeout 约束
	// 防止一个挂死的钩子吃掉其它钩子的时间
	HookTimeout time.Duration `yaml:"hook_timeout"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Timeout:     30 * time.Second,
		HookTimeout: 10 * time.Second,
	}
}
