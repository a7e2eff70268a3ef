package api

import (
	"net/http"

	"github.com/fyerfyer/doc-annotator/api/handler"
	"github.com/fyerfyer/doc-annotator/api/middleware"
	"github.com/fyerfyer/doc-annotator/api/model"
	"github.com/fyerfyer/doc-annotator/internal/annotate"
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置API路由
func SetupRouter(annotationHandler *handler.AnnotationHandler) *gin.Engine {
	model.RegisterValidators()

	router := gin.New()

	// 追踪ID最先设置，日志和错误响应都会用到
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(Cors())

	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
	}

	api := router.Group("/api")
	{
		annotations := api.Group("/annotations")
		{
			annotations.POST("", annotationHandler.Submit)
			annotations.GET("", annotationHandler.List)
			annotations.GET("/:id", annotationHandler.Get)
			annotations.GET("/:id/download", annotationHandler.Download)
			annotations.DELETE("/:id", annotationHandler.Delete)
		}

		api.POST("/comments/parse", annotationHandler.ParseComments)

		api.GET("/health", func(c *gin.Context) {
			kinds := annotate.DefaultRegistry().Kinds()
			resp := model.HealthResponse{Status: "ok", Kinds: make([]string, len(kinds))}
			for i, k := range kinds {
				resp.Kinds[i] = k.String()
			}
			c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
		})
	}

	return router
}

// Cors 跨域资源共享中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Trace-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
