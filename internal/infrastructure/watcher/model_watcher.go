package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/meetily/backend/internal/domain/events"
	"github.com/meetily/backend/internal/infrastructure/log"
)

// modelDebounceDelay 模型目录变化防抖延迟
// 模型文件写入是长过程，密集的写事件合并为一次通知
const modelDebounceDelay = 500 * time.Millisecond

// ModelWatcher 模型目录监听器
// 文件系统是模型可用性的唯一事实来源，目录变化时发布事件触发状态刷新
type ModelWatcher struct {
	modelsDir string
	eventBus  events.EventBus
	watcher   *fsnotify.Watcher
	logger    *slog.Logger

	debounceMu    sync.Mutex
	debounceTimer *time.Timer

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewModelWatcher 创建模型目录监听器
func NewModelWatcher(modelsDir string, eventBus events.EventBus) (*ModelWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &ModelWatcher{
		modelsDir: modelsDir,
		eventBus:  eventBus,
		watcher:   watcher,
		logger:    log.NewModuleLogger("watcher", "model_watcher"),
		stopCh:    make(chan struct{}),
	}, nil
}

// Start 启动监听
func (mw *ModelWatcher) Start() error {
	if err := os.MkdirAll(mw.modelsDir, 0755); err != nil {
		return err
	}
	if err := mw.watcher.Add(mw.modelsDir); err != nil {
		return err
	}

	mw.logger.Info("启动模型目录监听", "dir", mw.modelsDir)

	mw.wg.Add(1)
	go mw.watchLoop()
	return nil
}

// Stop 停止监听
func (mw *ModelWatcher) Stop() {
	close(mw.stopCh)
	mw.watcher.Close()
	mw.wg.Wait()

	mw.debounceMu.Lock()
	if mw.debounceTimer != nil {
		mw.debounceTimer.Stop()
	}
	mw.debounceMu.Unlock()

	mw.logger.Info("模型目录监听已停止")
}

func (mw *ModelWatcher) watchLoop() {
	defer mw.wg.Done()

	for {
		select {
		case <-mw.stopCh:
			return
		case event, ok := <-mw.watcher.Events:
			if !ok {
				return
			}
			if mw.relevant(event) {
				mw.scheduleNotify()
			}
		case err, ok := <-mw.watcher.Errors:
			if !ok {
				return
			}
			mw.logger.Warn("模型目录监听错误", "error", err)
		}
	}
}

// relevant 只关心模型文件本身的增删和写入完成，忽略下载临时文件
func (mw *ModelWatcher) relevant(event fsnotify.Event) bool {
	if strings.HasSuffix(event.Name, ".tmp") {
		return false
	}
	ext := filepath.Ext(event.Name)
	if ext != ".bin" && ext != ".onnx" && ext != ".gguf" {
		return false
	}
	return event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Remove) ||
		event.Op.Has(fsnotify.Rename) || event.Op.Has(fsnotify.Write)
}

// scheduleNotify 防抖后发布目录变化事件
func (mw *ModelWatcher) scheduleNotify() {
	mw.debounceMu.Lock()
	defer mw.debounceMu.Unlock()

	if mw.debounceTimer != nil {
		mw.debounceTimer.Stop()
	}
	mw.debounceTimer = time.AfterFunc(modelDebounceDelay, func() {
		mw.eventBus.Publish(events.NewModelDirChangedEvent(mw.modelsDir))
	})
}
