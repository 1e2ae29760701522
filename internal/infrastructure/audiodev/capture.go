package audiodev

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"

	"github.com/meetily/backend/internal/domain/audio"
)

// Stream 单个设备的 PCM 采集流
// Frames 关闭即流终止（进程退出或设备丢失），通过 Err 查询原因
type Stream interface {
	// Frames 定长单声道 float32 帧序列
	Frames() <-chan []float32
	// Err 流终止原因，正常 Close 后为 nil
	Err() error
	// Close 终止采集进程，幂等
	Close() error
}

// StreamOpener 打开设备 PCM 流
type StreamOpener interface {
	// OpenStream 启动指定设备的采集
	// device 为空表示平台默认设备；打不开返回 ErrDeviceUnavailable
	OpenStream(ctx context.Context, kind audio.DeviceKind, device string, sampleRate, chunkMs int) (Stream, error)
}

// ffmpegStreamOpener 基于 ffmpeg 子进程的流打开器
type ffmpegStreamOpener struct {
	ffmpegPath string
}

// NewStreamOpener 创建流打开器
func NewStreamOpener(ffmpegPath string) StreamOpener {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &ffmpegStreamOpener{ffmpegPath: ffmpegPath}
}

// OpenStream 启动 ffmpeg 采集进程，stdout 输出 s16le 单声道 PCM
func (o *ffmpegStreamOpener) OpenStream(ctx context.Context, kind audio.DeviceKind, device string, sampleRate, chunkMs int) (Stream, error) {
	args := captureArgs(kind, device)
	args = append(args,
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-f", "s16le",
		"-",
	)

	cmd := exec.CommandContext(ctx, o.ffmpegPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", audio.ErrDeviceUnavailable, err)
	}

	frameSamples := sampleRate * chunkMs / 1000
	s := &ffmpegStream{
		cmd:    cmd,
		stdout: stdout,
		frames: make(chan []float32, 8),
	}
	go s.readLoop(frameSamples)
	return s, nil
}

// captureArgs 按平台拼接设备输入参数
func captureArgs(kind audio.DeviceKind, device string) []string {
	switch runtime.GOOS {
	case "darwin":
		if device == "" {
			device = "default"
		}
		return []string{"-f", "avfoundation", "-i", ":" + device}
	case "windows":
		if device == "" {
			device = "default"
		}
		return []string{"-f", "dshow", "-i", "audio=" + device}
	default:
		if device == "" {
			if kind == audio.DeviceOutput {
				device = "default.monitor"
			} else {
				device = "default"
			}
		}
		return []string{"-f", "pulse", "-i", device}
	}
}

// ffmpegStream ffmpeg 子进程流
type ffmpegStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	frames chan []float32

	mu     sync.Mutex
	err    error
	closed bool
}

func (s *ffmpegStream) Frames() <-chan []float32 {
	return s.frames
}

func (s *ffmpegStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close 终止采集进程，幂等
func (s *ffmpegStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.stdout.Close()
	return nil
}

// readLoop 按帧长读取 PCM 并转换为 float32
// 读失败（设备丢失、进程退出）时关闭 frames，调用方据此感知流终止
func (s *ffmpegStream) readLoop(frameSamples int) {
	defer close(s.frames)
	defer s.cmd.Wait()

	buf := make([]byte, frameSamples*2)
	for {
		if _, err := io.ReadFull(s.stdout, buf); err != nil {
			s.mu.Lock()
			if !s.closed && err != io.EOF {
				s.err = fmt.Errorf("capture stream lost: %w", err)
			}
			s.mu.Unlock()
			return
		}

		samples := make([]float32, frameSamples)
		for i := range samples {
			raw := int16(binary.LittleEndian.Uint16(buf[i*2:]))
			samples[i] = float32(raw) / 32768.0
		}

		select {
		case s.frames <- samples:
		default:
			// 消费者落后时丢帧，采集热路径不阻塞
		}
	}
}

// SamplesToPCM 将 float32 采样编码为 PCM16 小端字节
func SamplesToPCM(samples []float32) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, sample := range samples {
		if sample > 1.0 {
			sample = 1.0
		} else if sample < -1.0 {
			sample = -1.0
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(sample*32767)))
	}
	return pcm
}
