package snowflake

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

/* ========================================================================
 * Snowflake ID Generator - 雪花算法 ID 生成器
 * ========================================================================
 * 职责: 为持久化实体生成主键
 * 特点:
 *   - 64 位整数，趋势递增，不依赖中心化服务
 *   - 41 位毫秒时间戳 + 10 位节点 ID + 12 位序列号
 *
 * 多实例部署时必须为每个实例配置不同的节点 ID:
 *   FIT_SNOWFLAKE_NODE_ID: 节点 ID (0-1023)，默认 0
 * ======================================================================== */

const (
	// MaxNodeID 最大节点 ID (10 位)
	MaxNodeID = 1023
	// EnvNodeID 节点 ID 环境变量名
	EnvNodeID = "FIT_SNOWFLAKE_NODE_ID"
)

var (
	globalNode *snowflake.Node
	once       sync.Once
)

// Generator ID 生成器
// 需要多个独立生成器时使用；常规场景直接用全局 Generate()
type Generator struct {
	node *snowflake.Node
}

// NewGenerator 创建新的 ID 生成器
func NewGenerator(nodeID int64) (*Generator, error) {
	if nodeID < 0 || nodeID > MaxNodeID {
		return nil, &ConfigError{
			Field:   "nodeID",
			Value:   nodeID,
			Message: "nodeID must be between 0 and 1023",
		}
	}

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}

	return &Generator{node: node}, nil
}

// Generate 生成雪花 ID
func (g *Generator) Generate() int64 {
	return g.node.Generate().Int64()
}

/* ========================================================================
 * 全局函数
 * ======================================================================== */

func initNode() error {
	nodeID, err := envNodeID()
	if err != nil {
		return err
	}

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return &ConfigError{
			Field:   "nodeID",
			Value:   nodeID,
			Message: err.Error(),
		}
	}

	globalNode = node
	return nil
}

// Generate 生成雪花 ID
// 节点 ID 从环境变量 FIT_SNOWFLAKE_NODE_ID 读取，默认 0
func Generate() int64 {
	once.Do(func() {
		if err := initNode(); err != nil {
			panic(err.Error())
		}
	})

	return globalNode.Generate().Int64()
}

// GenerateString 生成雪花 ID（字符串格式）
func GenerateString() string {
	return snowflake.ID(Generate()).String()
}

// Parse 解析雪花 ID，返回时间戳（毫秒）和节点 ID
func Parse(id int64) (timestamp int64, nodeID int64) {
	sid := snowflake.ID(id)
	return sid.Time(), sid.Node()
}

func envNodeID() (int64, error) {
	val := os.Getenv(EnvNodeID)
	if val == "" {
		return 0, nil
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: invalid integer", EnvNodeID, val)
	}

	if id < 0 || id > MaxNodeID {
		return 0, &ConfigError{
			Field:   EnvNodeID,
			Value:   id,
			Message: "nodeID must be between 0 and 1023",
		}
	}

	return id, nil
}

// ConfigError 配置错误
type ConfigError struct {
	Field   string
	Value   int64
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + "=" + strconv.FormatInt(e.Value, 10) + ": " + e.Message
}
