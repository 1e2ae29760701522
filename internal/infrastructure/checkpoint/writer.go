package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type writeRequest struct {
	data []byte
	// ack 非空表示 flush 哨兵：写入器处理到此处时回执
	ack chan error
}

// sessionWriter 单个会话的异步音频块写入器
// 追加路径只做一次有界 channel 投递，落盘在独立 goroutine 完成
type sessionWriter struct {
	store     *sqliteStore
	sessionID string
	folder    string

	requests chan writeRequest
	done     chan struct{}

	mu        sync.Mutex
	nextIndex int
	lastErr   error
	stopped   bool
}

func newSessionWriter(store *sqliteStore, sessionID, folder string) *sessionWriter {
	w := &sessionWriter{
		store:     store,
		sessionID: sessionID,
		folder:    folder,
		requests:  make(chan writeRequest, writeBufferSize),
		done:      make(chan struct{}),
	}
	go w.run()
	return w
}

// enqueue 投递音频块，缓冲满时丢弃并记警告
func (w *sessionWriter) enqueue(pcm []byte) {
	// 调用方可能复用缓冲区，投递前拷贝
	data := make([]byte, len(pcm))
	copy(data, pcm)

	select {
	case w.requests <- writeRequest{data: data}:
	default:
		w.store.logger.Warn("检查点写缓冲已满，丢弃音频块", "session_id", w.sessionID)
	}
}

// flush 阻塞等待此前投递的全部音频块落盘
func (w *sessionWriter) flush() error {
	w.mu.Lock()
	if w.stopped {
		err := w.lastErr
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()

	ack := make(chan error, 1)
	select {
	case w.requests <- writeRequest{ack: ack}:
	case <-w.done:
		return w.lastError()
	}

	select {
	case err := <-ack:
		return err
	case <-w.done:
		return w.lastError()
	}
}

// stop 停止写入器并落盘剩余缓冲
func (w *sessionWriter) stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.requests)
	<-w.done
}

func (w *sessionWriter) lastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

func (w *sessionWriter) run() {
	defer close(w.done)

	for req := range w.requests {
		if req.ack != nil {
			req.ack <- w.lastError()
			continue
		}
		if err := w.writeChunk(req.data); err != nil {
			w.mu.Lock()
			w.lastErr = err
			w.mu.Unlock()
			w.store.logger.Error("音频块落盘失败", "session_id", w.sessionID, "error", err)
		}
	}
}

func (w *sessionWriter) writeChunk(data []byte) error {
	w.mu.Lock()
	index := w.nextIndex
	w.nextIndex++
	w.mu.Unlock()

	path := filepath.Join(w.folder, fmt.Sprintf("%s%06d%s", chunkFilePrefix, index, chunkFileSuffix))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write chunk file: %w", err)
	}

	touchSQL := `
		UPDATE checkpoint_sessions SET chunk_count = ?, last_updated = ? WHERE id = ?`
	if _, err := w.store.db.Exec(touchSQL, index+1, time.Now().Unix(), w.sessionID); err != nil {
		return fmt.Errorf("failed to touch checkpoint session: %w", err)
	}
	return nil
}
