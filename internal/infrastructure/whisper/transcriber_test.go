package whisper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestParseLanguageHint 测试语言提示解析
func TestParseLanguageHint(t *testing.T) {
	tests := []struct {
		name string
		hint string
		want Options
	}{
		{"空值自动检测", "", Options{Language: "auto"}},
		{"显式自动检测", "auto", Options{Language: "auto"}},
		{"自动检测并翻译", "auto-translate", Options{Language: "auto", Translate: true}},
		{"明确语言码", "zh", Options{Language: "zh"}},
		{"英文", "en", Options{Language: "en"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLanguageHint(tt.hint))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	long := strings.Repeat("x", 20)
	assert.Equal(t, strings.Repeat("x", 10)+"...", truncate(long, 10))
}
