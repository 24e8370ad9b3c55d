package shutdown

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fitgo/fit-go-core/logger"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

/* ========================================================================
 * Shutdown Manager - 优雅关停管理器
 * ========================================================================
 * 职责: 汇集各模块的收尾动作，在进程退出前按序执行
 * 规则:
 *   - 钩子按优先级从小到大执行，同优先级并行
 *   - 整体受 Timeout 约束，单个钩子受 HookTimeout 约束；
 *     超时的优先级组直接放弃，不拖住进程退出
 *   - 信号处理交给 fx，本包只从生命周期 OnStop 进入
 * ======================================================================== */

// Hook 关停钩子
type Hook func(ctx context.Context) error

type hookEntry struct {
	name     string
	fn       Hook
	priority int
}

// Manager 优雅关停管理器
type Manager struct {
	cfg *Config
	log *logger.Logger

	mu    sync.Mutex
	hooks []hookEntry

	done chan struct{}
	once sync.Once
}

// ManagerParams 依赖参数
type ManagerParams struct {
	fx.In

	Logger *logger.Logger
	Config *Config
}

// NewManager 创建优雅关停管理器
func NewManager(p ManagerParams) *Manager {
	cfg := p.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Manager{
		cfg:  cfg,
		log:  p.Logger,
		done: make(chan struct{}),
	}
}

// RegisterHook 注册关停钩子（默认优先级）
func (m *Manager) RegisterHook(name string, fn Hook) {
	m.RegisterHookWithPriority(name, fn, PriorityNormal)
}

// RegisterHookWithPriority 注册带优先级的关停钩子
// 数值越小越先执行，同优先级并行
func (m *Manager) RegisterHookWithPriority(name string, fn Hook, priority int) {
	m.mu.Lock()
	m.hooks = append(m.hooks, hookEntry{name: name, fn: fn, priority: priority})
	m.mu.Unlock()

	m.log.Info("registered shutdown hook",
		zap.String("name", name),
		zap.Int("priority", priority),
	)
}

// Shutdown 执行关停流程，幂等
func (m *Manager) Shutdown(ctx context.Context) {
	m.once.Do(func() {
		m.run(ctx)
		close(m.done)
	})
}

// Done 关停完成通道
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

func (m *Manager) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	m.mu.Lock()
	hooks := make([]hookEntry, len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].priority < hooks[j].priority
	})

	m.log.Info("starting graceful shutdown",
		zap.Int("hooks", len(hooks)),
		zap.Duration("timeout", m.cfg.Timeout),
	)

	for start := 0; start < len(hooks); {
		end := start
		for end < len(hooks) && hooks[end].priority == hooks[start].priority {
			end++
		}
		if ctx.Err() != nil {
			m.log.Warn("shutdown timeout reached, skipping remaining hooks",
				zap.Int("skipped", len(hooks)-start))
			return
		}
		m.runGroup(ctx, hooks[start:end])
		start = end
	}

	m.log.Info("graceful shutdown completed")
}

// runGroup 并行执行同一优先级的钩子
func (m *Manager) runGroup(ctx context.Context, group []hookEntry) {
	var wg sync.WaitGroup
	for _, h := range group {
		wg.Add(1)
		go func(entry hookEntry) {
			defer wg.Done()

			hctx := ctx
			if m.cfg.HookTimeout > 0 {
				var cancel context.CancelFunc
				hctx, cancel = context.WithTimeout(ctx, m.cfg.HookTimeout)
				defer cancel()
			}

			start := time.Now()
			err := entry.fn(hctx)
			if err != nil {
				m.log.Error("shutdown hook failed",
					zap.String("name", entry.name),
					zap.Duration("duration", time.Since(start)),
					zap.Error(err),
				)
				return
			}
			m.log.Info("shutdown hook completed",
				zap.String("name", entry.name),
				zap.Duration("duration", time.Since(start)),
			)
		}(h)
	}
	wg.Wait()
}
