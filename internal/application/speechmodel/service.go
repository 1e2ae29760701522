// Package speechmodel 提供语音模型的列举、下载、取消与删除
// 文件系统是模型可用性的唯一事实来源，每次列举都实时核对磁盘状态
package speechmodel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"log/slog"

	"github.com/meetily/backend/internal/domain/events"
	domainModel "github.com/meetily/backend/internal/domain/speechmodel"
	"github.com/meetily/backend/internal/infrastructure/config"
	"github.com/meetily/backend/internal/infrastructure/download"
	"github.com/meetily/backend/internal/infrastructure/log"
)

// downloadJob 进行中的下载
type downloadJob struct {
	cancel   context.CancelFunc
	progress float64
}

// Service 语音模型管理服务
type Service struct {
	downloader download.Downloader
	eventBus   events.EventBus
	logger     *slog.Logger

	mu        sync.Mutex
	downloads map[string]*downloadJob
	// lastErrors 最近一次下载失败原因，按模型名记录，成功或删除后清除
	lastErrors map[string]string
}

// NewService 创建语音模型管理服务
func NewService(downloader download.Downloader, eventBus events.EventBus) *Service {
	return &Service{
		downloader: downloader,
		eventBus:   eventBus,
		logger:     log.NewModuleLogger("speechmodel", "service"),
		downloads:  make(map[string]*downloadJob),
		lastErrors: make(map[string]string),
	}
}

// ListModels 列举全部已知模型及其实时状态
func (s *Service) ListModels() ([]domainModel.Descriptor, error) {
	modelsDir, err := config.GetModelsDir()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	catalog := domainModel.Catalog()
	descriptors := make([]domainModel.Descriptor, 0, len(catalog))
	for _, entry := range catalog {
		descriptors = append(descriptors, s.describeLocked(modelsDir, entry))
	}
	return descriptors, nil
}

// describeLocked 按磁盘事实和下载状态生成模型描述，调用方持锁
func (s *Service) describeLocked(modelsDir string, entry domainModel.CatalogEntry) domainModel.Descriptor {
	desc := domainModel.Descriptor{
		Name:        entry.Name,
		Engine:      entry.Engine,
		SizeBytes:   entry.SizeBytes,
		ContextSize: entry.ContextSize,
	}

	if job, ok := s.downloads[entry.Name]; ok {
		desc.Status = domainModel.StatusDownloading
		desc.Progress = job.progress
		return desc
	}

	path := filepath.Join(modelsDir, entry.FileName)
	info, err := os.Stat(path)
	if err != nil {
		if errMsg, ok := s.lastErrors[entry.Name]; ok {
			desc.Status = domainModel.StatusError
			desc.Error = errMsg
			return desc
		}
		desc.Status = domainModel.StatusNotDownloaded
		return desc
	}

	// 大小偏差超过 10% 视为损坏（下载中断残留或文件被篡改）
	if entry.SizeBytes > 0 && !sizePlausible(info.Size(), entry.SizeBytes) {
		desc.Status = domainModel.StatusCorrupted
		desc.Path = path
		return desc
	}

	desc.Status = domainModel.StatusAvailable
	desc.Path = path
	return desc
}

func sizePlausible(actual, expected int64) bool {
	diff := actual - expected
	if diff < 0 {
		diff = -diff
	}
	return diff*10 <= expected
}

// DownloadModel 启动模型下载，立即返回
// 进度通过事件总线发布；已在下载中返回 ErrDownloadActive
func (s *Service) DownloadModel(name string) error {
	entry, ok := domainModel.FindCatalogEntry(name)
	if !ok {
		return fmt.Errorf("%w: %s", domainModel.ErrModelUnknown, name)
	}

	modelsDir, err := config.GetModelsDir()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, active := s.downloads[name]; active {
		s.mu.Unlock()
		return domainModel.ErrDownloadActive
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &downloadJob{cancel: cancel}
	s.downloads[name] = job
	delete(s.lastErrors, name)
	s.mu.Unlock()

	destPath := filepath.Join(modelsDir, entry.FileName)
	go s.runDownload(ctx, entry, destPath, job)
	return nil
}

func (s *Service) runDownload(ctx context.Context, entry domainModel.CatalogEntry, destPath string, job *downloadJob) {
	s.logger.Info("开始下载模型", "model", entry.Name, "url", entry.URL)

	err := s.downloader.Download(ctx, entry.URL, destPath, download.Options{
		OnProgress: func(downloaded, total int64) {
			progress := 0.0
			if total > 0 {
				progress = float64(downloaded) / float64(total)
			}
			s.mu.Lock()
			job.progress = progress
			s.mu.Unlock()

			s.eventBus.Publish(events.NewModelDownloadEvent(events.ModelDownloadPayload{
				ModelName:       entry.Name,
				DownloadedBytes: downloaded,
				TotalBytes:      total,
				Progress:        progress,
			}))
		},
		ExpectedSize: entry.SizeBytes,
	})

	s.mu.Lock()
	delete(s.downloads, entry.Name)
	if err != nil && !errors.Is(err, download.ErrDownloadCanceled) {
		s.lastErrors[entry.Name] = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, download.ErrDownloadCanceled) {
			s.logger.Info("模型下载已取消", "model", entry.Name)
		} else {
			s.logger.Error("模型下载失败", "model", entry.Name, "error", err)
		}
		return
	}

	s.logger.Info("模型下载完成", "model", entry.Name, "path", destPath)
}

// CancelDownload 取消进行中的下载，无下载时是无操作
func (s *Service) CancelDownload(name string) {
	s.mu.Lock()
	job, ok := s.downloads[name]
	s.mu.Unlock()
	if ok {
		job.cancel()
	}
}

// DeleteModel 删除已下载的模型文件，下载中则先取消
func (s *Service) DeleteModel(name string) error {
	entry, ok := domainModel.FindCatalogEntry(name)
	if !ok {
		return fmt.Errorf("%w: %s", domainModel.ErrModelUnknown, name)
	}

	s.CancelDownload(name)

	modelsDir, err := config.GetModelsDir()
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.lastErrors, name)
	s.mu.Unlock()

	path := filepath.Join(modelsDir, entry.FileName)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete model file: %w", err)
	}
	return nil
}

// ModelPath 返回可用模型的本地路径
// 未下载、损坏或下载中返回 ErrModelNotReady
func (s *Service) ModelPath(name string) (string, error) {
	entry, ok := domainModel.FindCatalogEntry(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", domainModel.ErrModelUnknown, name)
	}

	modelsDir, err := config.GetModelsDir()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	desc := s.describeLocked(modelsDir, entry)
	s.mu.Unlock()

	if desc.Status != domainModel.StatusAvailable {
		return "", fmt.Errorf("%w: %s is %s", domainModel.ErrModelNotReady, name, desc.Status)
	}
	return desc.Path, nil
}
