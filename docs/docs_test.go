package docs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

// TestSwaggerSpecRegistered 测试 swagger 规格已注册且模板可渲染
func TestSwaggerSpecRegistered(t *testing.T) {
	doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
	require.NoError(t, err)
	assert.Contains(t, doc, `"title": "meetily Backend API"`)
	assert.Contains(t, doc, `"basePath": "/api/v1"`)
	assert.Contains(t, doc, `"swagger": "2.0"`)
}
