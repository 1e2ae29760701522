// Package download 提供带重试、进度回调和校验的 HTTP 文件下载器
package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"github.com/meetily/backend/internal/infrastructure/log"
)

// 下载相关错误
var (
	ErrDownloadCanceled = errors.New("download canceled")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrFileSizeMismatch = errors.New("file size mismatch")
	ErrDownloadFailed   = errors.New("download failed")
	ErrHTTPStatusNotOK  = errors.New("HTTP status not OK")
)

// ProgressCallback 下载进度回调
// total 未知时为 -1
type ProgressCallback func(downloaded, total int64)

// Options 下载选项
type Options struct {
	// OnProgress 进度回调，每秒至少调用一次
	OnProgress ProgressCallback
	// ExpectedSize 预期文件大小，0 表示不校验
	ExpectedSize int64
	// ExpectedChecksum SHA256 校验和，空表示不校验
	ExpectedChecksum string
	// MaxRetries 最大重试次数，默认 3
	MaxRetries int
	// RetryDelay 重试延迟基数，默认 1s，指数退避
	RetryDelay time.Duration
}

// Downloader 文件下载器接口
type Downloader interface {
	// Download 下载文件到指定路径，取消通过 ctx
	Download(ctx context.Context, url, destPath string, opts Options) error
}

// HTTPDownloader HTTP 文件下载器实现
type HTTPDownloader struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPDownloader 创建 HTTP 下载器
func NewHTTPDownloader() *HTTPDownloader {
	// 分离各阶段超时，整体时长由 context 控制（模型文件可达数 GB）
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}

	return &HTTPDownloader{
		client: &http.Client{Transport: transport},
		logger: log.NewModuleLogger("download", "http"),
	}
}

// Download 实现 Downloader 接口
func (d *HTTPDownloader) Download(ctx context.Context, url, destPath string, opts Options) error {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrDownloadCanceled, ctx.Err())
		default:
		}

		if attempt > 1 {
			d.logger.Info("重试下载",
				"attempt", attempt,
				"max_retries", opts.MaxRetries,
				"url", url)

			waitTime := opts.RetryDelay * time.Duration(1<<(attempt-2))
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrDownloadCanceled, ctx.Err())
			case <-time.After(waitTime):
			}
		}

		err := d.downloadOnce(ctx, url, destPath, opts)
		if err == nil {
			return nil
		}

		lastErr = err
		d.logger.Warn("下载尝试失败",
			"attempt", attempt,
			"error", err)

		if !isRetryableError(err) {
			return err
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrDownloadFailed, opts.MaxRetries, lastErr)
}

// downloadOnce 执行单次下载尝试
// 先写临时文件，全部校验通过后原子重命名，失败绝不留下半截目标文件
func (d *HTTPDownloader) downloadOnce(ctx context.Context, url, destPath string, opts Options) error {
	destDir := filepath.Dir(destPath)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	tmpPath := destPath + ".tmp"
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "meetily-downloader/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d %s", ErrHTTPStatusNotOK, resp.StatusCode, resp.Status)
	}

	contentLength := resp.ContentLength
	if contentLength > 0 {
		d.logger.Info("开始下载",
			"url", url,
			"size_mb", float64(contentLength)/(1024*1024))
	}

	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer out.Close()

	var reader io.Reader = resp.Body
	if opts.OnProgress != nil {
		reader = &progressReader{
			reader:     resp.Body,
			total:      contentLength,
			onProgress: opts.OnProgress,
		}
	}

	written, err := io.Copy(out, reader)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrDownloadCanceled, ctx.Err())
		}
		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	if contentLength > 0 && written != contentLength {
		return fmt.Errorf("%w: expected %d bytes, got %d bytes",
			ErrFileSizeMismatch, contentLength, written)
	}
	if opts.ExpectedSize > 0 && written != opts.ExpectedSize {
		return fmt.Errorf("%w: expected %d bytes, got %d bytes",
			ErrFileSizeMismatch, opts.ExpectedSize, written)
	}

	if opts.ExpectedChecksum != "" {
		checksum, err := FileChecksum(tmpPath)
		if err != nil {
			return fmt.Errorf("failed to calculate checksum: %w", err)
		}
		if !strings.EqualFold(checksum, opts.ExpectedChecksum) {
			return fmt.Errorf("%w: expected %s, got %s",
				ErrChecksumMismatch, opts.ExpectedChecksum, checksum)
		}
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	success = true
	d.logger.Info("下载完成",
		"path", destPath,
		"size_bytes", written)

	return nil
}

// progressReader 包装 io.Reader 以报告进度
type progressReader struct {
	reader     io.Reader
	total      int64
	downloaded int64
	onProgress ProgressCallback
	lastReport time.Time
}

func (pr *progressReader) Read(p []byte) (n int, err error) {
	n, err = pr.reader.Read(p)
	pr.downloaded += int64(n)

	now := time.Now()
	if now.Sub(pr.lastReport) >= time.Second || err == io.EOF {
		pr.onProgress(pr.downloaded, pr.total)
		pr.lastReport = now
	}
	return n, err
}

// FileChecksum 计算文件的 SHA256 校验和
func FileChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// isRetryableError 判断错误是否可重试
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrChecksumMismatch) || errors.Is(err, ErrDownloadCanceled) {
		return false
	}

	// 4xx 不可重试，5xx 和网络错误可重试
	if errors.Is(err, ErrHTTPStatusNotOK) {
		errStr := err.Error()
		if strings.Contains(errStr, "400") ||
			strings.Contains(errStr, "401") ||
			strings.Contains(errStr, "403") ||
			strings.Contains(errStr, "404") {
			return false
		}
	}
	return true
}
