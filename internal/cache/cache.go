package cache

import (
	"fmt"
	"strings"
	"time"
)

// Cache 缓存接口
// 标注服务用它把任务指纹映射到已生成的输出
type Cache interface {
	Get(key string) (value string, found bool, err error)
	Set(key string, value string, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Factory 缓存工厂函数类型
type Factory func(config Config) (Cache, error)

var registry = make(map[string]Factory)

// RegisterCache 注册缓存实现
func RegisterCache(name string, factory Factory) {
	registry[name] = factory
}

// NewCache 创建缓存实例，类型为空时使用内存缓存
func NewCache(config Config) (Cache, error) {
	if config.Type == "" {
		config.Type = "memory"
	}
	factory, ok := registry[config.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
	return factory(config)
}

// Config 缓存配置
type Config struct {
	Type            string        // memory 或 redis
	RedisAddr       string        // 仅Redis使用
	RedisPassword   string        // 仅Redis使用
	RedisDB         int           // 仅Redis使用
	KeyPrefix       string        // 键前缀，Redis的Clear只清理带该前缀的键
	DefaultTTL      time.Duration // 默认过期时间
	CleanupInterval time.Duration // 仅内存缓存使用
}

// DefaultConfig 返回默认缓存配置
func DefaultConfig() Config {
	return Config{
		Type:            "memory",
		KeyPrefix:       "annotator",
		DefaultTTL:      24 * time.Hour,
		CleanupInterval: 10 * time.Minute,
	}
}

// GenerateCacheKey 用冒号拼接键的各个部分，空的部分被忽略
func GenerateCacheKey(prefix string, parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	if prefix != "" {
		segments = append(segments, prefix)
	}
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return strings.Join(segments, ":")
}

// OutputKey 指纹对应的输出缓存键
func OutputKey(fingerprint string) string {
	return GenerateCacheKey("output", fingerprint)
}
