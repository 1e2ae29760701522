// Package audiodev 基于 ffmpeg/ffprobe 外部进程实现音频设备枚举、采集和文件探测
package audiodev

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"runtime"
	"strings"

	"github.com/meetily/backend/internal/domain/audio"
)

// DeviceLister 音频设备枚举接口
type DeviceLister interface {
	// EnumerateDevices 枚举可用音频设备，零设备是合法结果而非错误
	EnumerateDevices(ctx context.Context) ([]audio.Device, error)
}

// ffmpegDeviceLister 通过 ffmpeg 枚举设备
type ffmpegDeviceLister struct {
	ffmpegPath string
}

// NewDeviceLister 创建设备枚举器
func NewDeviceLister(ffmpegPath string) DeviceLister {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &ffmpegDeviceLister{ffmpegPath: ffmpegPath}
}

// EnumerateDevices 按平台选择采集后端并解析设备列表
// ffmpeg 不可用或无设备时返回空列表
func (l *ffmpegDeviceLister) EnumerateDevices(ctx context.Context) ([]audio.Device, error) {
	if _, err := exec.LookPath(l.ffmpegPath); err != nil {
		return []audio.Device{}, nil
	}

	switch runtime.GOOS {
	case "darwin":
		return l.listAVFoundation(ctx), nil
	case "windows":
		return l.listDShow(ctx), nil
	default:
		return l.listPulse(ctx), nil
	}
}

// avfDeviceRe 匹配 "[N] Device Name" 形式的行
var avfDeviceRe = regexp.MustCompile(`\[(\d+)\]\s+(.+)$`)

// listAVFoundation 解析 macOS avfoundation 设备列表
// ffmpeg 把列表写到 stderr 且以非零码退出，这是预期行为
func (l *ffmpegDeviceLister) listAVFoundation(ctx context.Context) []audio.Device {
	cmd := exec.CommandContext(ctx, l.ffmpegPath,
		"-f", "avfoundation", "-list_devices", "true", "-i", "")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run()

	var devices []audio.Device
	inAudioSection := false
	scanner := bufio.NewScanner(&stderr)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "AVFoundation audio devices") {
			inAudioSection = true
			continue
		}
		if strings.Contains(line, "AVFoundation video devices") {
			inAudioSection = false
			continue
		}
		if !inAudioSection {
			continue
		}
		match := avfDeviceRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		name := strings.TrimSpace(match[2])
		devices = append(devices, audio.Device{
			Name:    name,
			Kind:    classifyDevice(name),
			Default: len(devices) == 0,
		})
	}
	return devices
}

// dshowDeviceRe 匹配 dshow 设备行中的引号名称
var dshowDeviceRe = regexp.MustCompile(`"([^"]+)"\s+\(audio\)`)

// listDShow 解析 Windows DirectShow 音频设备列表
func (l *ffmpegDeviceLister) listDShow(ctx context.Context) []audio.Device {
	cmd := exec.CommandContext(ctx, l.ffmpegPath,
		"-list_devices", "true", "-f", "dshow", "-i", "dummy")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	_ = cmd.Run()

	var devices []audio.Device
	scanner := bufio.NewScanner(&stderr)
	for scanner.Scan() {
		match := dshowDeviceRe.FindStringSubmatch(scanner.Text())
		if match == nil {
			continue
		}
		name := match[1]
		devices = append(devices, audio.Device{
			Name:    name,
			Kind:    classifyDevice(name),
			Default: len(devices) == 0,
		})
	}
	return devices
}

// listPulse 通过 ffmpeg -sources 枚举 PulseAudio 源
// monitor 源即系统音频回环
func (l *ffmpegDeviceLister) listPulse(ctx context.Context) []audio.Device {
	cmd := exec.CommandContext(ctx, l.ffmpegPath, "-sources", "pulse")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stdout
	_ = cmd.Run()

	var devices []audio.Device
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "Auto-detected") || strings.HasPrefix(line, "ffmpeg") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		name := strings.TrimPrefix(fields[0], "*")
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		kind := audio.DeviceInput
		if strings.HasSuffix(name, ".monitor") {
			kind = audio.DeviceOutput
		}
		devices = append(devices, audio.Device{
			Name:    name,
			Kind:    kind,
			Default: strings.HasPrefix(fields[0], "*"),
		})
	}
	return devices
}

// classifyDevice 按名称启发式区分输入/输出设备
func classifyDevice(name string) audio.DeviceKind {
	lower := strings.ToLower(name)
	for _, marker := range []string{"blackhole", "loopback", "stereo mix", "monitor", "soundflower", "virtual"} {
		if strings.Contains(lower, marker) {
			return audio.DeviceOutput
		}
	}
	return audio.DeviceInput
}
