package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fyerfyer/doc-annotator/internal/annotate"
	"github.com/fyerfyer/doc-annotator/internal/document"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Queue      QueueConfig      `mapstructure:"queue"`
	Annotation AnnotationConfig `mapstructure:"annotation"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin运行模式 debug/release/test
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`        // debug/info/warn/error
	File       string `mapstructure:"file"`         // 日志文件路径，为空时只输出到标准输出
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // 单个日志文件最大大小
	MaxBackups int    `mapstructure:"max_backups"`  // 保留的旧日志文件数量
	MaxAgeDays int    `mapstructure:"max_age_days"` // 旧日志保留天数
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type      string `mapstructure:"type"` // local 或 minio
	Path      string `mapstructure:"path"` // 本地存储路径
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // 目前只支持sqlite
	DSN  string `mapstructure:"dsn"`
}

// CacheConfig 结果缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Type     string `mapstructure:"type"` // memory 或 redis
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTL      int    `mapstructure:"ttl"` // 秒
}

// QueueConfig 任务队列配置
type QueueConfig struct {
	Enable        bool   `mapstructure:"enable"` // 关闭时提交的任务同步处理
	Type          string `mapstructure:"type"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Concurrency   int    `mapstructure:"concurrency"`
	RetryLimit    int    `mapstructure:"retry_limit"`
	RetryDelay    int    `mapstructure:"retry_delay"` // 秒
}

// AnnotationConfig 标注引擎配置
type AnnotationConfig struct {
	Author           string `mapstructure:"author"`
	MaxComments      int    `mapstructure:"max_comments"`
	MaxBodyChars     int    `mapstructure:"max_body_chars"`
	HighlightColor   string `mapstructure:"highlight_color"`   // #RRGGBB
	ParagraphMapping string `mapstructure:"paragraph_mapping"` // reconcile 或 positional
	CommentFormat    string `mapstructure:"comment_format"`    // plain 或 markdown
}

// Color 解析高亮颜色
func (a AnnotationConfig) Color() (document.Color, error) {
	return document.ParseColor(a.HighlightColor)
}

// Mapping 解析段落映射方式
func (a AnnotationConfig) Mapping() (annotate.Mapping, error) {
	return annotate.ParseMapping(a.ParagraphMapping)
}

// Load 从文件和环境变量加载配置
// 配置文件不存在时使用默认值
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	setDefaults(v)

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
		logrus.WithField("file", v.ConfigFileUsed()).Info("Using config file")
	} else if errors.Is(err, os.ErrNotExist) {
		logrus.WithField("file", configPath).Warn("Config file not found, using defaults")
	} else {
		return nil, fmt.Errorf("failed to stat config file: %v", err)
	}

	// 环境变量覆盖，例如 ANNOTATION_AUTHOR 覆盖 annotation.author
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	expandSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	if _, err := c.Annotation.Color(); err != nil {
		return fmt.Errorf("invalid annotation.highlight_color: %w", err)
	}
	if _, err := c.Annotation.Mapping(); err != nil {
		return fmt.Errorf("invalid annotation.paragraph_mapping: %w", err)
	}
	switch c.Annotation.CommentFormat {
	case "", "plain", "markdown":
	default:
		return fmt.Errorf("invalid annotation.comment_format: %q", c.Annotation.CommentFormat)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	return nil
}

// expandSecrets 展开密钥类配置中的 ${ENV} 引用
func expandSecrets(cfg *Config) {
	for _, s := range []*string{
		&cfg.Storage.AccessKey,
		&cfg.Storage.SecretKey,
		&cfg.Cache.Password,
		&cfg.Queue.RedisPassword,
	} {
		if strings.Contains(*s, "${") {
			*s = os.ExpandEnv(*s)
		}
	}
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./uploads")
	v.SetDefault("storage.bucket", "annotator")
	v.SetDefault("storage.use_ssl", false)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/annotator.db")

	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", 86400)

	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.type", "redis")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.retry_limit", 3)
	v.SetDefault("queue.retry_delay", 60)

	v.SetDefault("annotation.author", annotate.DefaultAuthor)
	v.SetDefault("annotation.max_comments", 50)
	v.SetDefault("annotation.max_body_chars", annotate.DefaultMaxBodyChars)
	v.SetDefault("annotation.highlight_color", "#FFFF00")
	v.SetDefault("annotation.paragraph_mapping", string(annotate.MappingReconcile))
	v.SetDefault("annotation.comment_format", "plain")
}
