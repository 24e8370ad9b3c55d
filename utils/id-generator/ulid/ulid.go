package ulid

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

/* ========================================================================
 * ULID Generator - ULID 生成器
 * ========================================================================
 * 职责: 生成媒体资源键等对外暴露的标识
 * 特点:
 *   - 字典序按时间戳排序，利于对象存储前缀扫描
 *   - URL 安全（Crockford's Base32），固定 26 字符
 *   - 无需节点 ID 配置
 * ======================================================================== */

// MediaKeyLen 媒体资源键长度（标准 ULID 编码长度）
const MediaKeyLen = 26

var (
	globalEntropy io.Reader
	once          sync.Once
	mu            sync.Mutex
)

// Generator ULID 生成器
// 测试场景可注入确定性熵源，生产使用全局函数即可
type Generator struct {
	entropy io.Reader
	mu      sync.Mutex
}

// NewGenerator 创建新的 ULID 生成器
// entropy 传 nil 则使用 crypto/rand.Reader
func NewGenerator(entropy io.Reader) *Generator {
	if entropy == nil {
		entropy = rand.Reader
	}
	// Monotonic 熵源保证同一毫秒内按生成顺序递增，但本身不是并发安全的，
	// 因此需要配合互斥锁使用。
	if _, ok := entropy.(ulid.MonotonicEntropy); !ok {
		entropy = ulid.Monotonic(entropy, 0)
	}
	return &Generator{entropy: entropy}
}

// Generate 生成 ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString 生成 ULID（字符串格式）
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithTime 使用指定时间生成 ULID（数据迁移等场景）
func (g *Generator) GenerateWithTime(t time.Time) ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), g.entropy)
}

/* ========================================================================
 * 全局函数（加密安全随机源）
 * ======================================================================== */

func initEntropy() {
	globalEntropy = ulid.Monotonic(rand.Reader, 0)
}

// Generate 生成 ULID
func Generate() ulid.ULID {
	once.Do(initEntropy)

	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), globalEntropy)
}

// GenerateString 生成 ULID（字符串格式）
func GenerateString() string {
	return Generate().String()
}

// Parse 解析 ULID 字符串
func Parse(s string) (ulid.ULID, error) {
	return ulid.Parse(s)
}

// MustParse 解析 ULID 字符串，失败时 panic
func MustParse(s string) ulid.ULID {
	id, err := ulid.Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// IsValidMediaKey 校验媒体资源键格式
func IsValidMediaKey(s string) bool {
	if len(s) != MediaKeyLen {
		return false
	}
	_, err := ulid.Parse(s)
	return err == nil
}

// Time 提取 ULID 中的时间戳
func Time(id ulid.ULID) time.Time {
	return ulid.Time(id.Time())
}
