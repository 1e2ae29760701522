// Package http 提供 REST 与 WebSocket 接口层
package http

import (
	"context"
	"net/http"
	"time"

	"log/slog"

	"github.com/meetily/backend/internal/infrastructure/config"
	"github.com/meetily/backend/internal/infrastructure/log"
	"github.com/meetily/backend/internal/interfaces/http/handler"
	"github.com/meetily/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/meetily/backend/docs" // Swagger docs
)

// HTTPServer HTTP 服务器
type HTTPServer struct {
	router   *gin.Engine
	httpPort string
	server   *http.Server
	logger   *slog.Logger
}

// NewServer 创建 HTTP 服务器
func NewServer(
	cfg *config.Config,
	captureHandler *handler.CaptureHandler,
	meetingHandler *handler.MeetingHandler,
	importHandler *handler.ImportHandler,
	summaryHandler *handler.SummaryHandler,
	modelHandler *handler.ModelHandler,
	recoveryHandler *handler.RecoveryHandler,
	settingsHandler *handler.SettingsHandler,
	streamHandler *handler.StreamHandler,
) *HTTPServer {
	router := gin.Default()
	router.Use(middleware.EnsureUTF8Body())

	logger := log.NewModuleLogger("http", "server")

	// 注册路由
	api := router.Group("/api/v1")
	{
		// 设备与采集
		api.GET("/devices", captureHandler.ListDevices)
		api.POST("/capture/start", captureHandler.Start)
		api.POST("/capture/stop", captureHandler.Stop)
		api.GET("/capture/status", captureHandler.Status)
		api.POST("/levels/start", captureHandler.StartLevels)
		api.POST("/levels/stop", captureHandler.StopLevels)

		// 会议与转写
		api.GET("/meetings", meetingHandler.List)
		api.GET("/meetings/search", meetingHandler.Search)
		api.GET("/meetings/:id", meetingHandler.Get)
		api.PUT("/meetings/:id/title", meetingHandler.UpdateTitle)
		api.DELETE("/meetings/:id", meetingHandler.Delete)
		api.GET("/meetings/:id/transcripts", meetingHandler.Transcripts)

		// 总结
		api.POST("/meetings/:id/summary/process", summaryHandler.Process)
		api.GET("/meetings/:id/summary", summaryHandler.Get)
		api.POST("/meetings/:id/summary/cancel", summaryHandler.Cancel)
		api.DELETE("/meetings/:id/summary", summaryHandler.Delete)

		// 导入
		api.POST("/import/validate", importHandler.Validate)
		api.POST("/import/start", importHandler.Start)
		api.GET("/import/:id/status", importHandler.Status)
		api.POST("/import/:id/cancel", importHandler.Cancel)

		// 模型管理
		api.GET("/models", modelHandler.List)
		api.POST("/models/:name/download", modelHandler.Download)
		api.DELETE("/models/:name/download", modelHandler.CancelDownload)
		api.DELETE("/models/:name", modelHandler.Delete)

		// 检查点恢复
		api.GET("/recovery", recoveryHandler.List)
		api.POST("/recovery/:id/recover", recoveryHandler.Recover)
		api.DELETE("/recovery/:id", recoveryHandler.Discard)
		api.GET("/checkpoints/:id/has-audio", recoveryHandler.HasAudio)
		api.POST("/checkpoints/:id/recover-audio", recoveryHandler.RecoverAudio)
		api.POST("/checkpoints/:id/cleanup", recoveryHandler.Cleanup)

		// 设置
		api.GET("/settings/model", settingsHandler.GetModelConfig)
		api.POST("/settings/model", settingsHandler.SaveModelConfig)
		api.GET("/settings/transcript", settingsHandler.GetTranscriptConfig)
		api.POST("/settings/transcript", settingsHandler.SaveTranscriptConfig)
	}

	// WebSocket 推送
	router.GET("/ws/:topic", streamHandler.Stream)

	// 健康检查：单例锁探测依赖该端点
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Swagger UI
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return &HTTPServer{
		router:   router,
		httpPort: cfg.Server.HTTPPort,
		logger:   logger,
	}
}

// Start 启动服务器
func (s *HTTPServer) Start() error {
	s.server = &http.Server{
		Addr:    s.httpPort,
		Handler: s.router,
	}

	s.logger.Info("HTTP server starting",
		"port", s.httpPort,
	)

	return s.server.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Stop 停止服务器
func (s *HTTPServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
