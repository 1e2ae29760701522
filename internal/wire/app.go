package wire

import (
	"context"
	"database/sql"
	"time"

	"log/slog"

	appCapture "github.com/meetily/backend/internal/application/capture"
	appRecovery "github.com/meetily/backend/internal/application/recovery"
	appSummarize "github.com/meetily/backend/internal/application/summarize"
	"github.com/meetily/backend/internal/domain/checkpoint"
	"github.com/meetily/backend/internal/domain/events"
	applog "github.com/meetily/backend/internal/infrastructure/log"
	"github.com/meetily/backend/internal/infrastructure/watcher"
	"github.com/meetily/backend/internal/infrastructure/websocket"
	"github.com/meetily/backend/internal/interfaces"
)

// App 应用主结构，组合所有服务
type App struct {
	HTTPServer *interfaces.HTTPServer
	wsHub      *websocket.Hub
	capture    *appCapture.Service
	summarize  *appSummarize.Manager
	recovery   *appRecovery.Orchestrator
	store      checkpoint.Store
	db         *sql.DB
	logger     *slog.Logger

	eventBus     events.EventBus
	modelWatcher *watcher.ModelWatcher
	unsubscribe  func()
}

// NewApp 创建应用实例
func NewApp(
	httpServer *interfaces.HTTPServer,
	wsHub *websocket.Hub,
	captureService *appCapture.Service,
	summarizeManager *appSummarize.Manager,
	recoveryOrchestrator *appRecovery.Orchestrator,
	store checkpoint.Store,
	eventBus events.EventBus,
	modelWatcher *watcher.ModelWatcher,
	db *sql.DB,
) *App {
	return &App{
		HTTPServer:   httpServer,
		wsHub:        wsHub,
		capture:      captureService,
		summarize:    summarizeManager,
		recovery:     recoveryOrchestrator,
		store:        store,
		db:           db,
		logger:       applog.NewModuleLogger("app", "main"),
		eventBus:     eventBus,
		modelWatcher: modelWatcher,
	}
}

// Start 启动所有服务
func (a *App) Start() error {
	a.logger.Info("Starting meetily backend application")

	// 启动 WebSocket Hub 并桥接领域事件
	a.wsHub.Start()
	a.setupEventBridge()

	// 启动模型目录监听
	if a.modelWatcher != nil {
		if err := a.modelWatcher.Start(); err != nil {
			a.logger.Error("Failed to start model watcher", "error", err)
		}
	}

	// 启动恢复扫描：把遗弃的检查点会话转为候选
	go a.recovery.ScanOnStartup()

	// 启动 HTTP 服务器（goroutine）
	go func() {
		if err := a.HTTPServer.Start(); err != nil {
			a.logger.Error("Failed to start HTTP server",
				"error", err,
			)
		}
	}()

	a.logger.Info("meetily backend application started successfully")
	return nil
}

// setupEventBridge 把事件总线上的领域事件转发到 WebSocket 各主题
func (a *App) setupEventBridge() {
	a.unsubscribe = a.eventBus.SubscribeMultiple(
		[]events.EventType{
			events.SegmentPartial,
			events.SegmentFinal,
			events.CaptureStatusChanged,
			events.CaptureLevel,
			events.ImportProgress,
			events.ImportComplete,
			events.ImportFailed,
			events.SummaryStatusChanged,
			events.ModelDownloadProgress,
			events.ModelDirChanged,
			events.CheckpointRecovered,
		},
		events.HandlerFunc(func(event events.Event) error {
			topic, payload := routeEvent(event)
			if topic == "" {
				return nil
			}
			return a.wsHub.Broadcast(topic, string(event.Type()), payload)
		}),
	)
}

// routeEvent 把事件映射到推送主题与载荷
func routeEvent(event events.Event) (string, interface{}) {
	switch e := event.(type) {
	case *events.SegmentEvent:
		return websocket.TopicSegments, e.Payload
	case *events.CaptureStatusEvent:
		return websocket.TopicCapture, e.Payload
	case *events.LevelEvent:
		return websocket.TopicLevels, e.Payload
	case *events.ImportProgressEvent:
		return websocket.TopicImport, e.Payload
	case *events.ImportCompleteEvent:
		return websocket.TopicImport, e.Payload
	case *events.ImportFailedEvent:
		return websocket.TopicImport, e.Payload
	case *events.SummaryStatusEvent:
		return websocket.TopicSummary, e.Payload
	case *events.ModelDownloadEvent:
		return websocket.TopicModels, e.Payload
	case *events.ModelDirChangedEvent:
		return websocket.TopicModels, map[string]string{"path": e.Path}
	case *events.CheckpointRecoveredEvent:
		return websocket.TopicRecovery, e.Payload
	default:
		return "", nil
	}
}

// Stop 停止所有服务
// 关闭顺序与启动相反：先停外部入口，再停应用服务，最后落盘并关存储
func (a *App) Stop() error {
	a.logger.Info("Stopping meetily backend application")

	if err := a.HTTPServer.Stop(); err != nil {
		a.logger.Error("Failed to stop HTTP server", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a.capture.Shutdown(shutdownCtx)
	a.summarize.Shutdown()

	if a.modelWatcher != nil {
		a.modelWatcher.Stop()
	}

	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	a.eventBus.Close()

	// 检查点存储最后关闭，保证缓冲数据落盘
	if err := a.store.Close(); err != nil {
		a.logger.Error("Failed to close checkpoint store", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database", "error", err)
	}

	a.logger.Info("meetily backend application stopped")
	return nil
}
