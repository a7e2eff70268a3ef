package middleware

import (
	"bytes"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TraceIDKey 追踪ID在gin上下文中的键
const TraceIDKey = "TraceID"

// 常用日志字段
const (
	FieldTraceID  = "trace_id"
	FieldPath     = "path"
	FieldMethod   = "method"
	FieldStatus   = "status_code"
	FieldLatency  = "latency"
	FieldClientIP = "client_ip"
)

var log = logrus.New()

func init() {
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})

	if os.Getenv("DEBUG") == "true" {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

// GetLogger 返回API层共用的日志记录器
func GetLogger() *logrus.Logger {
	return log
}

// SetTraceID 从请求头读取或生成追踪ID，写入上下文和响应头
func SetTraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.New().String()
		}
		c.Set(TraceIDKey, traceID)
		c.Header("X-Trace-ID", traceID)
		c.Next()
	}
}

// TraceID 获取当前请求的追踪ID
func TraceID(c *gin.Context) string {
	if v, ok := c.Get(TraceIDKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Logger 请求日志中间件，记录状态码和耗时
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		entry := log.WithFields(logrus.Fields{
			FieldTraceID:  TraceID(c),
			FieldStatus:   c.Writer.Status(),
			FieldLatency:  time.Since(start).String(),
			FieldClientIP: c.ClientIP(),
			FieldMethod:   c.Request.Method,
			FieldPath:     path,
		})
		if c.Writer.Status() >= 500 {
			entry.Error("HTTP request")
			return
		}
		entry.Info("HTTP request")
	}
}

// RequestBodyLog 在DEBUG级别记录请求体
// 上传请求只记录大小，不记录文件内容
func RequestBodyLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !log.IsLevelEnabled(logrus.DebugLevel) || c.Request.Body == nil {
			c.Next()
			return
		}

		fields := logrus.Fields{
			FieldTraceID: TraceID(c),
			FieldMethod:  c.Request.Method,
			FieldPath:    c.Request.URL.Path,
		}
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			fields["content_length"] = c.Request.ContentLength
			log.WithFields(fields).Debug("Request body")
			c.Next()
			return
		}

		body, _ := io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		if len(body) > 0 {
			fields["body"] = string(body)
			log.WithFields(fields).Debug("Request body")
		}
		c.Next()
	}
}
