package checkpoint

import (
	"encoding/binary"
	"fmt"
	"os"
)

// wavHeaderSize RIFF/fmt/data 头部总长度（PCM16 单声道）
const wavHeaderSize = 44

// WAVWriter 增量写入 PCM16 单声道 WAV 文件
// 数据长度在 Close 时回填到头部
type WAVWriter struct {
	file       *os.File
	sampleRate int
	dataBytes  int64
}

// NewWAVWriter 创建 WAV 文件并预写占位头部
func NewWAVWriter(path string, sampleRate int) (*WAVWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create wav file: %w", err)
	}

	w := &WAVWriter{file: file, sampleRate: sampleRate}
	if err := w.writeHeader(); err != nil {
		file.Close()
		os.Remove(path)
		return nil, err
	}
	return w, nil
}

// Write 追加 PCM16 小端字节
func (w *WAVWriter) Write(pcm []byte) error {
	n, err := w.file.Write(pcm)
	w.dataBytes += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write wav data: %w", err)
	}
	return nil
}

// DurationSeconds 已写入音频的时长（秒）
func (w *WAVWriter) DurationSeconds() float64 {
	return float64(w.dataBytes) / 2.0 / float64(w.sampleRate)
}

// Close 回填头部长度字段并关闭文件
func (w *WAVWriter) Close() error {
	if _, err := w.file.Seek(0, 0); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to seek wav header: %w", err)
	}
	if err := w.writeHeader(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close wav file: %w", err)
	}
	return nil
}

func (w *WAVWriter) writeHeader() error {
	header := make([]byte, wavHeaderSize)
	byteRate := w.sampleRate * 2 // 单声道 16bit

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+w.dataBytes))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16) // fmt 块长度
	binary.LittleEndian.PutUint16(header[20:22], 1)  // PCM
	binary.LittleEndian.PutUint16(header[22:24], 1)  // 单声道
	binary.LittleEndian.PutUint32(header[24:28], uint32(w.sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(header[34:36], 16) // bits per sample
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(w.dataBytes))

	if _, err := w.file.Write(header); err != nil {
		return fmt.Errorf("failed to write wav header: %w", err)
	}
	return nil
}
