// Package speechmodel 定义本地语音模型描述与目录
package speechmodel

import "errors"

// ModelStatus 模型可用性状态
// 仅由下载/取消/删除操作和文件系统事实刷新修改
type ModelStatus string

const (
	// StatusNotDownloaded 未下载
	StatusNotDownloaded ModelStatus = "not_downloaded"
	// StatusDownloading 下载中（附进度）
	StatusDownloading ModelStatus = "downloading"
	// StatusAvailable 已下载且校验通过
	StatusAvailable ModelStatus = "available"
	// StatusCorrupted 文件存在但大小或校验不符
	StatusCorrupted ModelStatus = "corrupted"
	// StatusError 下载或校验出错（附错误信息）
	StatusError ModelStatus = "error"
)

// Engine 模型所属转写引擎
type Engine string

const (
	// EngineWhisper whisper.cpp GGML 模型
	EngineWhisper Engine = "whisper"
	// EngineParakeet parakeet ONNX 模型
	EngineParakeet Engine = "parakeet"
)

// Descriptor 模型描述
type Descriptor struct {
	Name   string      `json:"name"`
	Engine Engine      `json:"engine"`
	Status ModelStatus `json:"status"`
	// Progress 下载进度 [0,1]，仅 Status 为 downloading 时有意义
	Progress float64 `json:"progress,omitempty"`
	// SizeBytes 模型文件预期大小
	SizeBytes int64 `json:"size_bytes"`
	// ContextSize 模型上下文长度（音频秒数）
	ContextSize int    `json:"context_size"`
	Error       string `json:"error,omitempty"`
	// Path 本地文件路径，未下载时为空
	Path string `json:"path,omitempty"`
}

// CatalogEntry 已知模型目录项
type CatalogEntry struct {
	Name      string
	Engine    Engine
	FileName  string
	URL       string
	SizeBytes int64
	// ContextSize whisper 系列固定 30 秒窗口
	ContextSize int
}

var (
	// ErrModelNotReady 模型未下载、损坏或正在下载
	ErrModelNotReady = errors.New("model not ready")
	// ErrModelUnknown 模型不在已知目录中
	ErrModelUnknown = errors.New("unknown model")
	// ErrDownloadActive 模型已有进行中的下载
	ErrDownloadActive = errors.New("download already in progress")
)

// Catalog 已知模型目录
// 大小取自 huggingface ggerganov/whisper.cpp 发布件
func Catalog() []CatalogEntry {
	const hfBase = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"
	return []CatalogEntry{
		{Name: "tiny", Engine: EngineWhisper, FileName: "ggml-tiny.bin", URL: hfBase + "/ggml-tiny.bin", SizeBytes: 77_691_713, ContextSize: 30},
		{Name: "base", Engine: EngineWhisper, FileName: "ggml-base.bin", URL: hfBase + "/ggml-base.bin", SizeBytes: 147_951_465, ContextSize: 30},
		{Name: "small", Engine: EngineWhisper, FileName: "ggml-small.bin", URL: hfBase + "/ggml-small.bin", SizeBytes: 487_601_967, ContextSize: 30},
		{Name: "medium", Engine: EngineWhisper, FileName: "ggml-medium.bin", URL: hfBase + "/ggml-medium.bin", SizeBytes: 1_533_763_059, ContextSize: 30},
		{Name: "large-v3", Engine: EngineWhisper, FileName: "ggml-large-v3.bin", URL: hfBase + "/ggml-large-v3.bin", SizeBytes: 3_095_033_483, ContextSize: 30},
		{Name: "large-v3-turbo", Engine: EngineWhisper, FileName: "ggml-large-v3-turbo.bin", URL: hfBase + "/ggml-large-v3-turbo.bin", SizeBytes: 1_624_555_275, ContextSize: 30},
		{Name: "parakeet-tdt-0.6b-v3-int8", Engine: EngineParakeet, FileName: "parakeet-tdt-0.6b-v3-int8.onnx", URL: "https://huggingface.co/istupakov/parakeet-tdt-0.6b-v3-onnx/resolve/main/encoder-model.int8.onnx", SizeBytes: 652_000_000, ContextSize: 24},
	}
}

// FindCatalogEntry 按名称查找目录项
func FindCatalogEntry(name string) (CatalogEntry, bool) {
	for _, entry := range Catalog() {
		if entry.Name == name {
			return entry, true
		}
	}
	return CatalogEntry{}, false
}
